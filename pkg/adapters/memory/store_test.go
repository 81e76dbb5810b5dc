package memory_test

import (
	"testing"

	"github.com/aretw0/storyweaver/pkg/adapters/memory"
	"github.com/aretw0/storyweaver/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	tests.StateStoreContractTest(t, store)
}
