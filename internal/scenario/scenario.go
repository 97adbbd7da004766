// Package scenario loads YAML launch scenarios and replays them against an
// engine on a simulated clock.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// OperationType defines the supported step operations
type OperationType string

const (
	OperationLaunch   OperationType = "launch"
	OperationReserve  OperationType = "reserve"
	OperationExecute  OperationType = "execute"
	OperationCancel   OperationType = "cancel"
	OperationBuy      OperationType = "buy"
	OperationSell     OperationType = "sell"
	OperationAdvance  OperationType = "advance"
	OperationSetTax   OperationType = "set_tax"
	OperationMaxBuy   OperationType = "max_buy"
	OperationGraduate OperationType = "graduate"
)

// Account is a named participant. Without a private key its address is
// derived from the name.
type Account struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key"`
	Balance    uint64 `yaml:"balance"`

	Address solana.PublicKey `yaml:"-"`
}

// TaxStep carries set_tax parameters; vaults name accounts.
type TaxStep struct {
	Vault             string `yaml:"vault"`
	BuyBp             uint64 `yaml:"buy_bp"`
	SellBp            uint64 `yaml:"sell_bp"`
	AntiSniperStartBp uint64 `yaml:"anti_sniper_start_bp"`
	AntiSniperVault   string `yaml:"anti_sniper_vault"`
}

// Step is one scenario operation.
type Step struct {
	Op      OperationType `yaml:"op"`
	Account string        `yaml:"account"`
	Token   string        `yaml:"token"` // label given by a launch or reserve step
	As      string        `yaml:"as"`
	Name    string        `yaml:"name"`
	Symbol  string        `yaml:"symbol"`
	// Amount is the purchase for launch/reserve, the asset input for buy
	// and the token input for sell.
	Amount        uint64        `yaml:"amount"`
	PercentToSell uint64        `yaml:"percent_to_sell"`
	SlippageBps   *uint64       `yaml:"slippage_bps"`
	// MinOut pins the minimum output of a buy or sell instead of deriving
	// it from a quote taken before the trade.
	MinOut        *uint64       `yaml:"min_out"`
	Duration      time.Duration `yaml:"duration"`
	StartIn       time.Duration `yaml:"start_in"`
	Tax           *TaxStep      `yaml:"tax"`
	ExpectError   string        `yaml:"expect_error"`
}

// Slippage returns the step's tolerance in basis points.
func (s Step) Slippage() uint64 {
	if s.SlippageBps == nil {
		return types.DefaultSlippageBps
	}
	return *s.SlippageBps
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name     string    `yaml:"name"`
	Start    time.Time `yaml:"start"`
	Accounts []Account `yaml:"accounts"`
	Steps    []Step    `yaml:"steps"`
}

// Loader reads and validates scenario files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader with the given logger.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger.Named("scenario")}
}

// Load reads a scenario from a YAML file
func (l *Loader) Load(path string) (*Scenario, error) {
	if filepath.IsAbs(path) {
		l.logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	sc, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func (l *Loader) Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("no steps found in scenario")
	}

	names := make(map[string]bool, len(sc.Accounts))
	for i := range sc.Accounts {
		acc := &sc.Accounts[i]
		if acc.Name == "" {
			return nil, fmt.Errorf("account %d has no name", i)
		}
		if names[acc.Name] {
			return nil, fmt.Errorf("duplicate account %q", acc.Name)
		}
		names[acc.Name] = true
		addr, err := accountAddress(*acc)
		if err != nil {
			return nil, err
		}
		acc.Address = addr
	}

	labels := make(map[string]bool)
	for i, step := range sc.Steps {
		if err := validateStep(step, names, labels); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		if step.As != "" {
			labels[step.As] = true
		}
	}

	l.logger.Info("Loaded scenario",
		zap.String("name", sc.Name),
		zap.Int("accounts", len(sc.Accounts)),
		zap.Int("steps", len(sc.Steps)))
	return &sc, nil
}

func accountAddress(acc Account) (solana.PublicKey, error) {
	if acc.PrivateKey != "" {
		key, err := solana.PrivateKeyFromBase58(acc.PrivateKey)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("account %q: invalid private key: %w", acc.Name, err)
		}
		return key.PublicKey(), nil
	}
	return ledger.AccountAddress(ledger.DefaultProgramID, acc.Name)
}

func validateStep(step Step, accounts, labels map[string]bool) error {
	needAccount := func() error {
		if !accounts[step.Account] {
			return fmt.Errorf("unknown account %q", step.Account)
		}
		return nil
	}
	needToken := func() error {
		if !labels[step.Token] {
			return fmt.Errorf("unknown token label %q", step.Token)
		}
		return nil
	}

	switch step.Op {
	case OperationLaunch, OperationReserve:
		if step.As == "" {
			return fmt.Errorf("missing label (as)")
		}
		if labels[step.As] {
			return fmt.Errorf("label %q reused", step.As)
		}
		return needAccount()
	case OperationExecute, OperationCancel:
		if err := needAccount(); err != nil {
			return err
		}
		return needToken()
	case OperationBuy, OperationSell:
		if err := needAccount(); err != nil {
			return err
		}
		if step.Amount == 0 && step.PercentToSell == 0 {
			return fmt.Errorf("missing amount")
		}
		if step.PercentToSell > 100 {
			return fmt.Errorf("percent_to_sell above 100")
		}
		if step.MinOut != nil && step.SlippageBps != nil {
			return fmt.Errorf("min_out and slippage_bps are exclusive")
		}
		return needToken()
	case OperationMaxBuy, OperationGraduate:
		return needToken()
	case OperationAdvance:
		if step.Duration <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		return nil
	case OperationSetTax:
		if step.Tax == nil {
			return fmt.Errorf("missing tax block")
		}
		for _, name := range []string{step.Tax.Vault, step.Tax.AntiSniperVault} {
			if name != "" && !accounts[name] {
				return fmt.Errorf("unknown vault account %q", name)
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported operation: %q", step.Op)
}
