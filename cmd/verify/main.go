package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"extended-hl-adapter/internal/compat"
	"extended-hl-adapter/internal/config"
	"extended-hl-adapter/internal/extended"
	"extended-hl-adapter/internal/logging"
	"extended-hl-adapter/internal/state/sqlite"
)

const (
	defaultVerifyMarket  = "BTC-USD"
	defaultHTTPTimeout   = 10 * time.Second
	defaultRunTimeout    = 30 * time.Second
	defaultVerifyEnvFile = ".env"
)

func main() {
	configPath := flag.String("config", "", "optional config path for environment and timeouts")
	market := flag.String("market", defaultVerifyMarket, "market to inspect")
	size := flag.Float64("size", 0, "order size for -place-order")
	placeOrder := flag.Bool("place-order", false, "place a market buy of -size and print the envelope")
	dryRun := flag.Bool("dry-run", false, "print the order inputs and exit without placing")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	environment := strings.TrimSpace(os.Getenv("EXTENDED_ENVIRONMENT"))
	httpTimeout := defaultHTTPTimeout
	runTimeout := defaultRunTimeout
	slippage := 0.0
	statePath := ""
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		logCfg = cfg.Log
		if environment == "" {
			environment = cfg.Extended.Environment
		}
		if cfg.Extended.Timeout > 0 {
			httpTimeout = cfg.Extended.Timeout
		}
		if cfg.Bridge.Timeout > 0 {
			runTimeout = cfg.Bridge.Timeout
		}
		slippage = cfg.Adapter.DefaultSlippage
		statePath = cfg.State.SQLitePath
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	creds, err := credentialsFromEnv()
	if err != nil {
		fatal(err)
	}
	env, err := extended.EnvironmentNamed(environment)
	if err != nil {
		fatal(err)
	}

	client, err := compat.New(compat.Config{
		Environment: env,
		HTTPTimeout: httpTimeout,
		RunTimeout:  runTimeout,
		Slippage:    slippage,
	}, creds, log)
	if err != nil {
		fatal(err)
	}
	defer client.Close()
	info := client.Info()
	fmt.Printf("environment=%s address=%s\n", env.Name, client.Address())

	meta, err := info.Meta()
	if err != nil {
		fatal(fmt.Errorf("meta: %w", err))
	}
	universe, _ := meta["universe"].([]map[string]any)
	fmt.Printf("universe: %d markets\n", len(universe))

	mids, err := info.AllMids()
	if err != nil {
		fatal(fmt.Errorf("allMids: %w", err))
	}
	printMids(mids, coinOf(*market))

	userState, err := info.UserState(client.Address())
	if err != nil {
		fatal(fmt.Errorf("userState: %w", err))
	}
	if summary, ok := userState["marginSummary"].(map[string]any); ok {
		fmt.Printf("account: equity=%v withdrawable=%v\n", summary["accountValue"], userState["withdrawable"])
	}

	openOrders, err := info.OpenOrders(client.Address())
	if err != nil {
		fatal(fmt.Errorf("openOrders: %w", err))
	}
	fmt.Printf("open orders: %d\n", len(openOrders))

	if !*placeOrder && !*dryRun {
		return
	}

	ctx := context.Background()
	stats, err := client.Extended().MarketStatsFor(ctx, *market)
	if err != nil {
		fatal(fmt.Errorf("market stats: %w", err))
	}
	if slippage <= 0 {
		slippage = compat.DefaultSlippage
	}
	fmt.Printf("%s: mark=%s bid=%s ask=%s slippage=%.4f\n",
		*market, stats.MarkPrice, stats.BidPrice, stats.AskPrice, slippage)

	if *dryRun {
		fmt.Printf("dry run: would market buy %s size=%v at the derived crossing price\n", *market, *size)
		return
	}
	if *size <= 0 {
		fatal(errors.New("-size must be > 0 for -place-order"))
	}

	if statePath != "" {
		if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
			log.Warn("nonce store init failed: " + err.Error())
		} else if store, err := sqlite.New(statePath); err != nil {
			log.Warn("nonce store init failed: " + err.Error())
		} else {
			defer store.Close()
			if err := client.InitStore(ctx, store); err != nil {
				log.Warn("nonce store init failed: " + err.Error())
			}
		}
	}

	resp := client.Exchange().MarketOpen(*market, true, *size, 0, 0, "", nil)
	if !compat.IsOK(resp) {
		fatal(fmt.Errorf("order rejected: %s", compat.ErrorMessage(resp)))
	}
	orderID := compat.OrderIDFromResponse(resp)
	if orderID != "" {
		fmt.Printf("exchange response: order_id=%s\n", orderID)
		return
	}
	fmt.Printf("exchange response: %v\n", resp)
}

func printMids(mids map[string]string, coin string) {
	if mid, ok := mids[coin]; ok {
		fmt.Printf("mid %s: %s\n", coin, mid)
		return
	}
	coins := make([]string, 0, len(mids))
	for name := range mids {
		coins = append(coins, name)
	}
	sort.Strings(coins)
	if len(coins) > 3 {
		coins = coins[:3]
	}
	for _, name := range coins {
		fmt.Printf("mid %s: %s\n", name, mids[name])
	}
}

func coinOf(market string) string {
	if idx := strings.Index(market, "-"); idx > 0 {
		return market[:idx]
	}
	return market
}

func credentialsFromEnv() (extended.Credentials, error) {
	apiKey := strings.TrimSpace(os.Getenv("EXTENDED_API_KEY"))
	if apiKey == "" {
		return extended.Credentials{}, errors.New("EXTENDED_API_KEY is required")
	}
	privateKey := strings.TrimSpace(os.Getenv("EXTENDED_PRIVATE_KEY"))
	if privateKey == "" {
		return extended.Credentials{}, errors.New("EXTENDED_PRIVATE_KEY is required")
	}
	vaultRaw := strings.TrimSpace(os.Getenv("EXTENDED_VAULT"))
	if vaultRaw == "" {
		return extended.Credentials{}, errors.New("EXTENDED_VAULT is required")
	}
	vault, err := strconv.ParseInt(vaultRaw, 10, 64)
	if err != nil {
		return extended.Credentials{}, fmt.Errorf("invalid EXTENDED_VAULT: %w", err)
	}
	return extended.Credentials{
		APIKey:     apiKey,
		Vault:      vault,
		PrivateKey: privateKey,
		PublicKey:  strings.TrimSpace(os.Getenv("EXTENDED_PUBLIC_KEY")),
	}, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
