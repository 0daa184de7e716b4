package sources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/gdi/pkg/connector/registry"
	_ "github.com/ajitpratap0/gdi/pkg/connector/sources"
)

func TestBuiltinSourcesRegistered(t *testing.T) {
	for _, name := range []string{"worldbank", "market", "csv"} {
		assert.True(t, registry.HasSource(name), name)
	}
}
