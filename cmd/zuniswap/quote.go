package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zuniswap/internal/chain"
	"zuniswap/internal/config"
	"zuniswap/internal/fixedpoint"
	"zuniswap/internal/pricing"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	baseIn, err := fixedpoint.ParseUnits(cfg.BaseIn)
	if err != nil {
		return fmt.Errorf("base-in: %w", err)
	}
	tokenIn, err := fixedpoint.ParseUnits(cfg.TokenIn)
	if err != nil {
		return fmt.Errorf("token-in: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		baseReserve, tokenReserve *uint256.Int
		checks                    []chain.QuoteCheck
	)
	if cfg.RPCURL != "" {
		if cfg.Exchange == "" {
			return fmt.Errorf("exchange address is required with --rpc")
		}
		exchangeAddr, err := chain.ParseAddress(cfg.Exchange)
		if err != nil {
			return err
		}

		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		reader := chain.NewExchangeReader(chainClient, chain.ReaderConfig{
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryBackoff,
		}, logger)

		var block *big.Int
		if cfg.Block > 0 {
			block = new(big.Int).SetUint64(cfg.Block)
		}
		state, err := reader.ReadExchange(ctx, exchangeAddr, block)
		if err != nil {
			return err
		}
		logger.Info("exchange state",
			zap.String("exchange", state.Address.Hex()),
			zap.String("token", state.Token.Hex()),
			zap.String("name", state.Name),
			zap.Uint64("block", state.BlockNumber),
			zap.String("base_reserve", fixedpoint.FormatUnits(state.BaseReserve)),
			zap.String("token_reserve", fixedpoint.FormatUnits(state.TokenReserve)),
			zap.String("total_supply", fixedpoint.FormatUnits(state.TotalSupply)),
		)
		baseReserve, tokenReserve = state.BaseReserve, state.TokenReserve

		if cfg.Check {
			checks, err = reader.CheckQuotes(ctx, state, baseIn, tokenIn)
			if err != nil {
				return err
			}
		}
	} else {
		if baseReserve, err = fixedpoint.ParseUnits(cfg.BaseReserve); err != nil {
			return fmt.Errorf("base-reserve: %w", err)
		}
		if tokenReserve, err = fixedpoint.ParseUnits(cfg.TokenReserve); err != nil {
			return fmt.Errorf("token-reserve: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "base reserve:  %s\n", fixedpoint.FormatUnits(baseReserve))
	fmt.Fprintf(out, "token reserve: %s\n", fixedpoint.FormatUnits(tokenReserve))
	if price, err := pricing.SpotPrice(baseReserve, tokenReserve); err == nil {
		fmt.Fprintf(out, "price (token per base): %s\n", fixedpoint.FormatUnits(price))
	}
	if price, err := pricing.SpotPrice(tokenReserve, baseReserve); err == nil {
		fmt.Fprintf(out, "price (base per token): %s\n", fixedpoint.FormatUnits(price))
	}

	if !baseIn.IsZero() {
		if err := printQuote(out, "base -> token", baseIn, baseReserve, tokenReserve); err != nil {
			return err
		}
	}
	if !tokenIn.IsZero() {
		if err := printQuote(out, "token -> base", tokenIn, tokenReserve, baseReserve); err != nil {
			return err
		}
	}

	mismatches := 0
	for _, c := range checks {
		status := "match"
		if !c.Match() {
			status = "MISMATCH"
			mismatches++
		}
		fmt.Fprintf(out, "%s(%s): local %s remote %s %s\n",
			c.Method, fixedpoint.FormatUnits(c.Input), fixedpoint.FormatUnits(c.Local), fixedpoint.FormatUnits(c.Remote), status)
	}
	if mismatches > 0 {
		return fmt.Errorf("%d quote mismatches", mismatches)
	}
	return nil
}

func printQuote(out io.Writer, label string, in, inReserve, outReserve *uint256.Int) error {
	withFee, err := pricing.OutputAmount(in, inReserve, outReserve)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	noFee, err := pricing.CurveOutputAmount(in, inReserve, outReserve)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	fmt.Fprintf(out, "%s %s: out %s (without fee %s)\n",
		label, fixedpoint.FormatUnits(in), fixedpoint.FormatUnits(withFee), fixedpoint.FormatUnits(noFee))
	return nil
}
