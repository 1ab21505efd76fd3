// cmd/botconfig is the operator CLI that owns bot configuration: it writes
// rows to Postgres (the durable source of truth) and syncs them into
// Redis's bot:cfg:{id} hashes and sym:bots:{sym} index sets, the only
// writer to that state per spec §3's "read-only for the core" rule.
//
// Usage:
//
//	go run ./cmd/botconfig set --bot-id=b1 --user-id=u1 --sym=BTCUSDT --risk=0.01 --leverage=5 --tp-ratio=1.5
//	go run ./cmd/botconfig sync
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"futurespipeline/internal/config"
	"futurespipeline/internal/configstore"
	"futurespipeline/internal/model"
	"futurespipeline/internal/streams"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("[botconfig] ")

	if len(os.Args) < 2 {
		log.Fatal("usage: botconfig <set|sync> [flags]")
	}
	cmd := os.Args[1]
	cfg := config.Load()
	ctx := context.Background()

	pg, err := configstore.NewPGStore(ctx, requirePostgres(cfg.PostgresDSN))
	if err != nil {
		log.Fatalf("postgres connect failed: %v", err)
	}
	defer pg.Close()

	switch cmd {
	case "set":
		runSet(ctx, pg, os.Args[2:])
	case "sync":
		runSync(ctx, pg, cfg)
	default:
		log.Fatalf("unknown subcommand %q", cmd)
	}
}

func requirePostgres(dsn string) string {
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required for cmd/botconfig")
	}
	return dsn
}

func runSet(ctx context.Context, pg *configstore.PGStore, args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	botID := fs.String("bot-id", "", "bot id")
	userID := fs.String("user-id", "", "owning user id")
	sym := fs.String("sym", "", "symbol, e.g. BTCUSDT")
	status := fs.String("status", string(model.BotStatusActive), "active|paused|ended")
	sideMode := fs.String("side-mode", string(model.SideModeBoth), "both|long_only|short_only")
	risk := fs.String("risk", "0.01", "risk per trade, fraction of free balance")
	leverage := fs.Int("leverage", 1, "leverage multiplier")
	tpRatio := fs.String("tp-ratio", "1.5", "take-profit distance as a multiple of stop distance")
	maxQty := fs.String("max-qty", "", "optional hard cap on entry quantity")
	fs.Parse(args)

	if *botID == "" || *sym == "" {
		log.Fatal("--bot-id and --sym are required")
	}

	riskDec, err := decimal.NewFromString(*risk)
	if err != nil {
		log.Fatalf("invalid --risk: %v", err)
	}
	tpDec, err := decimal.NewFromString(*tpRatio)
	if err != nil {
		log.Fatalf("invalid --tp-ratio: %v", err)
	}

	c := model.BotConfig{
		BotID: *botID, UserID: *userID, Sym: *sym,
		Status: model.BotStatus(*status), SideMode: model.SideMode(*sideMode),
		RiskPerTrade: riskDec, Leverage: *leverage, TPRatio: tpDec,
	}
	if *maxQty != "" {
		mq, err := decimal.NewFromString(*maxQty)
		if err != nil {
			log.Fatalf("invalid --max-qty: %v", err)
		}
		c.MaxQty = &mq
	}

	if err := pg.UpsertBotConfig(ctx, c); err != nil {
		log.Fatalf("upsert bot_config failed: %v", err)
	}
	fmt.Printf("bot_config %s written; run `botconfig sync` to push it into redis\n", c.BotID)
}

func runSync(ctx context.Context, pg *configstore.PGStore, cfg *config.Config) {
	configs, err := pg.ListBotConfigs(ctx)
	if err != nil {
		log.Fatalf("list bot_config failed: %v", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping failed: %v", err)
	}

	for _, c := range configs {
		fields := map[string]interface{}{
			"user_id":        c.UserID,
			"sym":            c.Sym,
			"status":         string(c.Status),
			"side_mode":      string(c.SideMode),
			"risk_per_trade": c.RiskPerTrade.String(),
			"leverage":       strconv.Itoa(c.Leverage),
			"tp_ratio":       c.TPRatio.String(),
		}
		if c.MaxQty != nil {
			fields["max_qty"] = c.MaxQty.String()
		}
		if err := rdb.HSet(ctx, streams.BotConfigKey(c.BotID), fields).Err(); err != nil {
			log.Printf("hset bot:cfg:%s failed: %v", c.BotID, err)
			continue
		}
		if err := rdb.SAdd(ctx, streams.SymBotsIndexKey(c.Sym), c.BotID).Err(); err != nil {
			log.Printf("sadd sym:bots:%s failed: %v", c.Sym, err)
			continue
		}
		fmt.Printf("synced %s -> sym=%s status=%s\n", c.BotID, c.Sym, c.Status)
	}
}
