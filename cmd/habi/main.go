// Command habi is a headless Habi client. It talks to the remote API
// through the same reconciliation layer the app uses, so ownership and
// coin state keep working across connectivity gaps.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/habi/habi-go/internal/config"
	"github.com/habi/habi-go/internal/events"
	"github.com/habi/habi-go/internal/games"
	"github.com/habi/habi-go/internal/habiapi"
	"github.com/habi/habi-go/internal/localstore"
	"github.com/habi/habi-go/internal/mirror"
	"github.com/habi/habi-go/internal/pet"
	"github.com/habi/habi-go/internal/session"
)

const usage = `usage: habi <command> [args]

commands:
  login <username> <password>   authenticate and store the session
  logout                        clear the session and local mirror
  status                        show owned items and the active cosmetic
  catalog                       list purchasable items
  buy <item-id>                 purchase an item
  wear <item-id>                set the active cosmetic
  coins                         show the coin balance
  spin                          play the daily slot machine
  feed <amount>                 feed the pet
`

type app struct {
	api   *habiapi.Client
	local *localstore.Store
	sess  *session.Session
	store *mirror.Store
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()

	storePath := cfg.LocalStorePath
	if home, err := os.UserHomeDir(); err == nil && storePath == "habi.db" {
		storePath = filepath.Join(home, ".habi", "habi.db")
		os.MkdirAll(filepath.Dir(storePath), 0o755)
	}

	local, err := localstore.Open(storePath)
	if err != nil {
		fatal("open local store: %v", err)
	}
	defer local.Close()

	sess := session.New(local)
	api := habiapi.NewClient(cfg.APIBaseURL)
	bus := events.NewBus()

	a := &app{
		api:   api,
		local: local,
		sess:  sess,
		store: mirror.New(api, local, sess, bus),
	}

	ctx := context.Background()
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, mirror.ErrSessionExpired) || errors.Is(err, session.ErrNoSession) {
			fatal("not logged in or session expired, run: habi login <username> <password>")
		}
		fatal("%v", err)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		if len(args) != 2 {
			return errors.New("usage: habi login <username> <password>")
		}
		resp, err := a.api.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if err := a.sess.SetToken(ctx, resp.Token); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil

	case "logout":
		if err := a.store.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil

	case "status":
		own, err := a.store.FetchOwnership(ctx)
		if err != nil {
			return err
		}
		if own.Stale {
			fmt.Println("(offline, showing last-known state)")
		}
		fmt.Printf("owned items: %v\n", own.OwnedIDs)
		if own.ActiveID != nil {
			fmt.Printf("wearing: %d\n", *own.ActiveID)
		} else {
			fmt.Println("wearing: nothing")
		}
		return nil

	case "catalog":
		items, err := a.api.Catalog(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Printf("%4d  %-16s %5d coins  %s\n", item.ID, item.Name, item.Cost, item.Icon)
		}
		return nil

	case "buy":
		itemID, err := parseID(args, "habi buy <item-id>")
		if err != nil {
			return err
		}
		cost, err := a.lookupCost(ctx, itemID)
		if err != nil {
			return err
		}
		receipt, err := a.store.PurchaseItem(ctx, itemID, cost)
		if err != nil {
			return err
		}
		fmt.Printf("bought %s %s for %d coins, %d remaining\n",
			receipt.ItemName, receipt.ItemIcon, receipt.Cost, receipt.RemainingCoins)
		return nil

	case "wear":
		itemID, err := parseID(args, "habi wear <item-id>")
		if err != nil {
			return err
		}
		if err := a.store.SetActiveItem(ctx, itemID); err != nil {
			return err
		}
		fmt.Printf("now wearing %d\n", itemID)
		return nil

	case "coins":
		balance, stale, err := a.store.RefreshCoins(ctx)
		if err != nil {
			return err
		}
		if stale {
			fmt.Printf("%d coins (offline, last known)\n", balance)
		} else {
			fmt.Printf("%d coins\n", balance)
		}
		return nil

	case "spin":
		uid, err := a.sess.UserID(ctx)
		if err != nil {
			return err
		}
		result, err := games.NewSlotMachine(a.local).Spin(ctx, uid)
		if err != nil {
			return err
		}
		fmt.Printf("reels: %v, payout %d\n", result.Reels, result.Payout)
		return nil

	case "feed":
		uid, err := a.sess.UserID(ctx)
		if err != nil {
			return err
		}
		amount := 10
		if len(args) == 1 {
			if amount, err = strconv.Atoi(args[0]); err != nil {
				return errors.New("usage: habi feed <amount>")
			}
		}
		level, err := pet.NewTracker(a.local).Feed(ctx, uid, amount)
		if err != nil {
			return err
		}
		fmt.Printf("food level: %d/%d\n", level, pet.MaxLevel)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// lookupCost resolves an item's price from the catalog so the purchase
// balance check uses the advertised cost.
func (a *app) lookupCost(ctx context.Context, itemID int64) (int64, error) {
	items, err := a.api.Catalog(ctx)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return item.Cost, nil
		}
	}
	return 0, fmt.Errorf("item %d not in catalog", itemID)
}

func parseID(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.New("usage: " + usage)
	}
	return id, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
