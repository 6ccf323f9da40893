package transcript

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendNewestFirst(t *testing.T) {
	l := NewLog()
	a := l.Append(RoleModel, KindText, "first")
	b := l.Append(RoleModel, KindCode, "```go\n```")
	c := l.Append(RoleModel, KindImage, "data:image/jpeg;base64,AA==")

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(3), c.Seq)
	assert.NotEqual(t, a.ID, b.ID)

	got := l.NewestFirst()
	require.Len(t, got, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, a.ID, l.Entries()[0].ID)
	assert.Equal(t, 3, l.Len())
}

func TestLog_CopiesAreIndependent(t *testing.T) {
	l := NewLog()
	l.Append(RoleUser, KindText, "hi")
	got := l.NewestFirst()
	got[0].Payload = "changed"
	assert.Equal(t, "hi", l.Entries()[0].Payload)
}

func TestLog_ConcurrentAppendsGetUniqueSeq(t *testing.T) {
	l := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(RoleModel, KindText, "x")
		}()
	}
	wg.Wait()

	seen := map[uint64]bool{}
	for _, e := range l.Entries() {
		assert.False(t, seen[e.Seq])
		seen[e.Seq] = true
	}
	assert.Len(t, seen, 50)
}
