package filedb_test

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"clob/pkg/filedb"

	"github.com/stretchr/testify/require"
)

func newFiledb(t testing.TB) *filedb.Filedb {
	fdb, err := filedb.New(path.Join(t.TempDir(), "filedb/test.log"))
	require.Nil(t, err)
	t.Cleanup(func() { fdb.Close() })
	return fdb
}

func TestNew(t *testing.T) {
	fdb := newFiledb(t)

	txt := "{this a hi}"
	err := fdb.WriteLine(txt)
	require.Nil(t, err)

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, txt, s)
}

func TestReadLastLine(t *testing.T) {
	fdb := newFiledb(t)

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, "", s)

	long := strings.Repeat("x", 5000)
	require.Nil(t, fdb.WriteLine("first"))
	require.Nil(t, fdb.WriteLine(long))
	s, err = fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, long, s)

	require.Nil(t, fdb.WriteLine("last\n"))
	s, err = fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, "last", s)
}

func TestReadFirstLine(t *testing.T) {
	fdb := newFiledb(t)

	_, err := fdb.ReadFirstLine()
	require.NotNil(t, err)

	require.Nil(t, fdb.WriteLine("one"))
	require.Nil(t, fdb.WriteLine("two"))
	line, err := fdb.ReadFirstLine()
	require.Nil(t, err)
	require.Equal(t, "one", line)
}

func TestScan(t *testing.T) {
	fdb := newFiledb(t)
	for i := 0; i < 10; i++ {
		require.Nil(t, fdb.WriteLine(fmt.Sprintf("line %d", i)))
	}

	var lines []string
	err := fdb.Scan(func(line string) error {
		lines = append(lines, line)
		return nil
	})
	require.Nil(t, err)
	require.Len(t, lines, 10)
	require.Equal(t, "line 9", lines[9])

	stop := fmt.Errorf("stop")
	n := 0
	err = fdb.Scan(func(string) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	require.Equal(t, stop, err)
	require.Equal(t, 3, n)
}

func TestIncompleteLastLine(t *testing.T) {
	fdb := newFiledb(t)
	require.Nil(t, fdb.WriteLine("one"))
	require.Nil(t, fdb.WriteLine("two"))
	_, err := fdb.File.WriteString(`{"logID":3,"ts":17`)
	require.Nil(t, err)

	var lines []string
	require.Nil(t, fdb.Scan(func(line string) error {
		lines = append(lines, line)
		return nil
	}))
	require.Equal(t, []string{"one", "two"}, lines)

	s, err := fdb.ReadLastLine()
	require.Nil(t, err)
	require.Equal(t, "two", s)

	n, err := fdb.TruncatePartial()
	require.Nil(t, err)
	require.Equal(t, int64(len(`{"logID":3,"ts":17`)), n)

	n, err = fdb.TruncatePartial()
	require.Nil(t, err)
	require.Equal(t, int64(0), n)

	require.Nil(t, fdb.WriteLine("three"))
	lines = nil
	require.Nil(t, fdb.Scan(func(line string) error {
		lines = append(lines, line)
		return nil
	}))
	require.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestTruncatePartialWithoutNewline(t *testing.T) {
	fdb := newFiledb(t)
	_, err := fdb.File.WriteString(strings.Repeat("x", 3000))
	require.Nil(t, err)

	n, err := fdb.TruncatePartial()
	require.Nil(t, err)
	require.Equal(t, int64(3000), n)

	stat, err := fdb.File.Stat()
	require.Nil(t, err)
	require.Equal(t, int64(0), stat.Size())
}

func TestTailfAndDrain(t *testing.T) {
	fdb := newFiledb(t)
	for i := 0; i < 50; i++ {
		require.Nil(t, fdb.WriteLine(fmt.Sprintf("hi %d", i)))
	}

	var (
		mu  sync.Mutex
		got []string
	)
	fdb.Handler = func(ss []string) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ss...)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan string, 16)
	go fdb.Tailf(ctx, ch)
	done := make(chan error, 1)
	go func() { done <- fdb.Drain(ctx, ch, 8) }()

	for i := 50; i < 100; i++ {
		require.Nil(t, fdb.WriteLine(fmt.Sprintf("hi %d", i)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 100
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	for i, s := range got {
		require.Equal(t, fmt.Sprintf("hi %d", i), s)
	}
	mu.Unlock()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestDrainStopsOnHandlerError(t *testing.T) {
	fdb := newFiledb(t)
	fail := fmt.Errorf("db down")
	fdb.Handler = func([]string) error { return fail }

	ch := make(chan string, 1)
	ch <- "x"
	err := fdb.Drain(context.Background(), ch, 0)
	require.Equal(t, fail, err)
}

func BenchmarkWrite(b *testing.B) {
	fdb := newFiledb(b)
	line := strings.Repeat("vFFDUPCTQVYuzFEhgjxPmHnwLxswVNPjOSNbMk6zDA3qPltQVuuTPcJXHpv31eTM", 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fdb.WriteLine(line)
	}
}
