package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-water/internal/scalar"
)

func openStore(t *testing.T) *ScalarStore {
	t.Helper()
	s, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScalarStore_PutAndRecord(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "1", []scalar.Point{
		{Year: 1900, Day: 1, Average: 20},
		{Year: 1900, Day: 0, Average: 10},
		{Year: 1901, Day: 0, Average: 30},
	}))

	rec, err := s.Record(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []scalar.Point{
		{Year: 1900, Day: 0, Average: 10},
		{Year: 1900, Day: 1, Average: 20},
		{Year: 1901, Day: 0, Average: 30},
	}, rec.Points())
}

func TestScalarStore_UnknownClass(t *testing.T) {
	s := openStore(t)
	_, err := s.Record(context.Background(), "9")
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestScalarStore_ImportCSV(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "scalar.csv")
	require.NoError(t, os.WriteFile(path, []byte("class_id,year,day,average\n1,1900,0,12.5\n1,1900,1,13\n2,1900,0,400\n"), 0o644))

	n, err := s.ImportCSV(ctx, path)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	ids, err := s.Classes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)

	rec, err := s.Record(ctx, "1")
	require.NoError(t, err)
	v, ok := rec.At(1900, 0)
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	tables, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "scalar")
}

func TestScalarStore_ImportMissingFile(t *testing.T) {
	s := openStore(t)
	_, err := s.ImportCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
