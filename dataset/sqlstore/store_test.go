package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/internal/serialize"
)

func openTestStore(t *testing.T, compression serialize.Compression) *Store {
	t.Helper()

	codec, err := dataset.NewCodec(compression)
	require.NoError(t, err)
	t.Cleanup(func() { codec.Close() })

	s, err := Open(context.Background(), Config{
		DSN:   filepath.Join(t.TempDir(), "glimpsy.db"),
		Codec: codec,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDataset(name string) *dataset.Dataset {
	return &dataset.Dataset{
		Name:        name,
		Description: "quarterly sales",
		Filename:    name + ".csv",
		FilePath:    "uploads/" + name + ".csv",
		FileType:    dataset.FileTypeCSV,
		Columns:     []string{"status", "price", "created_date"},
	}
}

func sampleRows() []dataset.Row {
	return []dataset.Row{
		{"status": "Active", "price": int64(10), "created_date": "2024-01-05"},
		{"status": "Closed", "price": 50.5, "created_date": "2024-02-01"},
		{"status": "", "price": "", "created_date": ""},
	}
}

func TestCreateAndGet(t *testing.T) {
	for _, c := range []serialize.Compression{
		serialize.CompressionNone,
		serialize.CompressionZstd,
		serialize.CompressionLZ4,
	} {
		t.Run(c.String(), func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, c)

			d := sampleDataset("sales")
			id, err := s.Create(ctx, d, sampleRows())
			require.NoError(t, err)
			assert.Positive(t, id)
			assert.Equal(t, id, d.ID)
			assert.Equal(t, 3, d.RowCount)
			assert.False(t, d.CreatedAt.IsZero())

			got, rows, err := s.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "sales", got.Name)
			assert.Equal(t, "quarterly sales", got.Description)
			assert.Equal(t, "sales.csv", got.Filename)
			assert.Equal(t, "uploads/sales.csv", got.FilePath)
			assert.Equal(t, dataset.FileTypeCSV, got.FileType)
			assert.Equal(t, []string{"status", "price", "created_date"}, got.Columns)
			assert.Equal(t, 3, got.RowCount)
			assert.True(t, d.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", d.CreatedAt, got.CreatedAt)
			assert.Equal(t, sampleRows(), rows)
		})
	}
}

func TestCreateEmptyDataset(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	d := sampleDataset("empty")
	d.Columns = nil
	id, err := s.Create(ctx, d, nil)
	require.NoError(t, err)

	got, rows, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, got.Columns)
	assert.Equal(t, 0, got.RowCount)
}

func TestCreateInvalid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	_, err := s.Create(ctx, nil, nil)
	assert.ErrorIs(t, err, dataset.ErrInvalid)

	d := sampleDataset("bad")
	d.FileType = "xlsx"
	_, err = s.Create(ctx, d, nil)
	assert.ErrorIs(t, err, dataset.ErrInvalid)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	_, _, err := s.Get(ctx, 42)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	_, err = s.Dataset(ctx, 42)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	err = s.Delete(ctx, 42)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	_, err = s.Comparison(ctx, 42)
	assert.ErrorIs(t, err, dataset.ErrComparisonNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.Create(ctx, sampleDataset(name), sampleRows())
		require.NoError(t, err)
	}

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "first", list[2].Name)
	assert.Equal(t, 3, list[0].RowCount)
	assert.Equal(t, dataset.FileTypeCSV, list[0].FileType)
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionZstd)

	id1, err := s.Create(ctx, sampleDataset("one"), sampleRows())
	require.NoError(t, err)
	id2, err := s.Create(ctx, sampleDataset("two"), sampleRows())
	require.NoError(t, err)
	id3, err := s.Create(ctx, sampleDataset("three"), sampleRows())
	require.NoError(t, err)

	_, err = s.CreateComparison(ctx, &dataset.Comparison{Name: "a", Dataset1ID: id1, Dataset2ID: id2})
	require.NoError(t, err)
	keep, err := s.CreateComparison(ctx, &dataset.Comparison{Name: "b", Dataset1ID: id2, Dataset2ID: id3})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id1))

	_, _, err = s.Get(ctx, id1)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM dataset_rows WHERE dataset_id = ?`, id1).Scan(&n))
	assert.Zero(t, n)

	comparisons, err := s.ListComparisons(ctx)
	require.NoError(t, err)
	require.Len(t, comparisons, 1)
	assert.Equal(t, keep, comparisons[0].ID)

	_, rows, err := s.Get(ctx, id2)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestComparisons(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	id1, err := s.Create(ctx, sampleDataset("left"), sampleRows())
	require.NoError(t, err)
	id2, err := s.Create(ctx, sampleDataset("right"), sampleRows())
	require.NoError(t, err)

	c := &dataset.Comparison{Dataset1ID: id1, Dataset2ID: id2}
	cid, err := s.CreateComparison(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, cid, c.ID)
	assert.Contains(t, c.Name, "Comparison ")

	got, err := s.Comparison(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, id1, got.Dataset1ID)
	assert.Equal(t, id2, got.Dataset2ID)
	assert.Equal(t, "left", got.Dataset1Name)
	assert.Equal(t, "right", got.Dataset2Name)

	named, err := s.CreateComparison(ctx, &dataset.Comparison{Name: "Q1 vs Q2", Dataset1ID: id2, Dataset2ID: id1})
	require.NoError(t, err)

	list, err := s.ListComparisons(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, named, list[0].ID)
	assert.Equal(t, "right", list[0].Dataset1Name)
}

func TestCreateComparisonInvalid(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionNone)

	id, err := s.Create(ctx, sampleDataset("only"), nil)
	require.NoError(t, err)

	_, err = s.CreateComparison(ctx, &dataset.Comparison{Dataset1ID: id, Dataset2ID: id})
	assert.ErrorIs(t, err, dataset.ErrInvalid)

	_, err = s.CreateComparison(ctx, &dataset.Comparison{Dataset1ID: id})
	assert.ErrorIs(t, err, dataset.ErrInvalid)

	_, err = s.CreateComparison(ctx, &dataset.Comparison{Dataset1ID: id, Dataset2ID: id + 100})
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	list, err := s.ListComparisons(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, serialize.CompressionLZ4)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, sampleDataset("concurrent"), sampleRows())
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.List(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres", DSN: "x"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{DSN: ""})
	assert.Error(t, err)
}
