package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds static, rarely-changed regime/risk parameters that operators
// edit by hand rather than via environment variables — a real config
// surface distinct from the per-process env Config above.
type Tuning struct {
	MA20Period  int `yaml:"ma20_period"`
	MA200Period int `yaml:"ma200_period"`

	DefaultRiskPerTrade string `yaml:"default_risk_per_trade"`
	DefaultTPRatio      string `yaml:"default_tp_ratio"`
	DefaultLeverage     int    `yaml:"default_leverage"`

	PELReclaimInterval string `yaml:"pel_reclaim_interval"`
	PELMinIdle         string `yaml:"pel_min_idle"`
}

// DefaultTuning holds the values used when no tuning file is supplied. The
// MA periods and PEL timings equal the calculator's built-in constants; the
// risk, TP-ratio and leverage defaults are not read by the plan builder,
// which sizes from each bot's own config.
func DefaultTuning() Tuning {
	return Tuning{
		MA20Period: 20, MA200Period: 200,
		DefaultRiskPerTrade: "0.01", DefaultTPRatio: "2", DefaultLeverage: 1,
		PELReclaimInterval: "30s", PELMinIdle: "60s",
	}
}

// LoadTuning reads a YAML tuning file, falling back to DefaultTuning when
// path is empty or the file does not exist.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}
