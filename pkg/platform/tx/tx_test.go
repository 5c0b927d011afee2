package tx

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromWithoutTx(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}

func TestConnFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Conn(context.Background(), db))

	sqlTx := &sql.Tx{}
	ctx := WithTx(context.Background(), sqlTx)
	assert.Same(t, sqlTx, Conn(ctx, db))
}

func TestLockRunnerSerializes(t *testing.T) {
	r := NewLockRunner()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLockRunnerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewLockRunner().RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
