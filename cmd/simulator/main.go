package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketsim/internal/domain"
	"marketsim/internal/exchange"
	"marketsim/internal/infra"
	"marketsim/internal/infra/feed"

	_ "net/http/pprof"
)

func main() {
	configPath := "configs/simulator.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	go func() {
		logger.Info("pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logger.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ex := exchange.New(logger, cfg.Market.Seed)

	for _, s := range cfg.Market.Symbols {
		symbol := domain.Symbol(s.Symbol)
		if s.Volatility > 0 {
			ex.AddSymbolWithVolatility(symbol, s.InitialPrice, s.Volatility)
		} else {
			ex.AddSymbol(symbol, s.InitialPrice)
		}
	}

	for _, p := range cfg.Participants {
		pid := domain.ParticipantId(p.ID)
		ex.AddParticipant(pid, p.InitialCash)
		for sym, qty := range p.Positions {
			ex.SetInitialPosition(pid, domain.Symbol(sym), domain.Quantity(qty))
		}
	}

	for _, m := range cfg.Bots.Momentum {
		symbols := make([]domain.Symbol, 0, len(m.Symbols))
		for _, s := range m.Symbols {
			symbols = append(symbols, domain.Symbol(s))
		}
		ex.AddMomentumTrader(domain.ParticipantId(m.ID), m.InitialCash, symbols, m.Lookback, m.Threshold, domain.Quantity(m.PositionSize))
	}

	for _, mm := range cfg.Bots.MarketMakers {
		symbols := make([]domain.Symbol, 0, len(mm.Symbols))
		for _, s := range mm.Symbols {
			symbols = append(symbols, domain.Symbol(s))
		}
		ex.AddMarketMaker(mm.InitialCash, symbols, mm.SpreadBps, domain.Quantity(mm.QuoteSize), domain.Quantity(mm.MaxPosition), mm.InventorySkew)
	}

	if cfg.Feed.Enabled {
		hub := feed.NewHub(logger)
		go hub.Run()

		ex.OnMarketData(func(md domain.MarketData) { hub.Publish("market_data", md) })
		ex.OnTrade(func(trade domain.Trade) { hub.Publish("trade", trade) })
		ex.OnRejection(func(order domain.Order, reason string) {
			hub.Publish("rejection", struct {
				Order  domain.Order `json:"order"`
				Reason string       `json:"reason"`
			}{order, reason})
		})

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		server := &http.Server{Addr: cfg.Feed.Addr, Handler: mux}
		go func() {
			logger.Info("dashboard feed listening", slog.String("addr", cfg.Feed.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("feed server failed", slog.Any("error", err))
			}
		}()
		go func() {
			<-ctx.Done()
			server.Close()
		}()
	}

	ex.Start()
	defer ex.Stop()

	logger.Info("market simulator running, press ctrl+c to exit",
		slog.Int("symbols", len(cfg.Market.Symbols)),
		slog.Int("participants", len(cfg.Participants)),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully")
}
