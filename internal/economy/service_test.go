package economy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	mathrand "math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDrawPairShape(t *testing.T) {
	s := &Service{rand: mathrand.New(mathrand.NewSource(1))}
	numberRe := regexp.MustCompile(`^[0-9]{5}$`)
	letterRe := regexp.MustCompile(`^[A-Z]$`)

	for range 200 {
		number, letter := s.randomDrawPair()
		assert.Regexp(t, numberRe, number)
		assert.Regexp(t, letterRe, letter)
		require.NoError(t, ValidateTicket(number, letter))
	}
}

func TestRunTxRetriesSerializationConflicts(t *testing.T) {
	s := &Service{log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	calls := 0
	out, err := runTx(context.Background(), s, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, ErrTxConflict
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)

	// A persistent conflict surfaces after the attempt budget.
	calls = 0
	_, err = runTx(context.Background(), s, func(ctx context.Context) (int, error) {
		calls++
		return 0, ErrTxConflict
	})
	require.ErrorIs(t, err, ErrTxConflict)
	assert.Equal(t, txAttempts, calls)

	// Anything else is not retried.
	boom := errors.New("boom")
	calls = 0
	_, err = runTx(context.Background(), s, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestBalanceDeltaSQLWhitelistedFields(t *testing.T) {
	// The field name is interpolated into SQL, so only validated constants
	// may ever reach balanceDeltaSQL.
	for _, field := range []string{FieldCoins, FieldVIPCoins} {
		require.NoError(t, ValidateField(field))
		assert.Contains(t, balanceDeltaSQL(field), field)
	}
}
