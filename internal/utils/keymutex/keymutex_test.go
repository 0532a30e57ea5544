package keymutex_test

import (
	"sync"
	"testing"

	"github.com/TallySync/tally_sync_app/internal/utils/keymutex"
	"github.com/stretchr/testify/assert"
)

func TestKeyMutex_SerializesSameKey(t *testing.T) {
	km := keymutex.New(8)

	const iterations = 500
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				km.Lock("txn_1")
				counter++
				km.Unlock("txn_1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4*iterations, counter)
}

func TestKeyMutex_HolderBlocksSecondLocker(t *testing.T) {
	km := keymutex.New(8)

	km.Lock("txn_1")
	acquired := make(chan struct{})
	go func() {
		km.Lock("txn_1")
		close(acquired)
		km.Unlock("txn_1")
	}()

	select {
	case <-acquired:
		t.Fatal("second locker acquired the key while it was held")
	default:
	}

	km.Unlock("txn_1")
	<-acquired
}
