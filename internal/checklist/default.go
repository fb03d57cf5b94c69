package checklist

import (
	_ "embed"
	"sync"
)

//go:embed definitions/cap_dcis_resection.yaml
var capDCISResection []byte

var loadDefault = sync.OnceValues(func() (*Schema, error) {
	def, err := Parse(capDCISResection)
	if err != nil {
		return nil, err
	}
	return New(def)
})

// Load returns the built-in CAP DCIS resection schema. It is built on first
// use and shared for the rest of the process.
func Load() (*Schema, error) {
	return loadDefault()
}

// DefaultDefinition returns the YAML source of the built-in checklist
func DefaultDefinition() []byte {
	return append([]byte(nil), capDCISResection...)
}
