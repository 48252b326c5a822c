package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

// recorder logs every call it receives.
type recorder struct {
	calls []string
	found bool
}

func (r *recorder) BlockFound(b *entity.Block)   { r.calls = append(r.calls, "bf") }
func (r *recorder) CacheFound(c *entity.Cache)   { r.calls = append(r.calls, "cf") }
func (r *recorder) BlockVanished(entity.ID) bool { r.calls = append(r.calls, "bv"); return r.found }
func (r *recorder) CacheVanished(entity.ID) bool { r.calls = append(r.calls, "cv"); return r.found }
func (r *recorder) BlockPickup(entity.ID) bool   { r.calls = append(r.calls, "bp"); return r.found }
func (r *recorder) BlockDrop(b *entity.Block)    { r.calls = append(r.calls, "bd") }
func (r *recorder) CacheBlockPickup(_, _ entity.ID) bool {
	r.calls = append(r.calls, "cbp")
	return r.found
}
func (r *recorder) CacheBlockDrop(entity.ID, *entity.Block) bool {
	r.calls = append(r.calls, "cbd")
	return r.found
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	b := entity.NewBlock(1, entity.Coord{})
	c := entity.NewCache(2, entity.Coord{}, 0, nil, 0)
	r := &recorder{}

	assert.True(t, Reconcile(r, Event{Kind: BlockFound, Block: b}))
	assert.True(t, Reconcile(r, Event{Kind: CacheFound, Cache: c}))
	assert.False(t, Reconcile(r, Event{Kind: BlockVanished, ID: 1}))
	assert.False(t, Reconcile(r, Event{Kind: CacheVanished, ID: 2}))
	assert.False(t, Reconcile(r, Event{Kind: FreeBlockPickup, ID: 1}))
	assert.True(t, Reconcile(r, Event{Kind: NewCacheDrop, Block: b}))
	assert.False(t, Reconcile(r, Event{Kind: CacheBlockPickup, Cache: c, Block: b}))
	assert.False(t, Reconcile(r, Event{Kind: CacheBlockDrop, Cache: c, Block: b}))
	assert.True(t, Reconcile(r, Event{Kind: NestDrop, Block: b}))

	assert.Equal(t, []string{"bf", "cf", "bv", "cv", "bp", "bd", "cbp", "cbd"}, r.calls)
}

type freeOnly struct{ got []Kind }

func (f *freeOnly) HandleFreeBlockPickup(ev Event) { f.got = append(f.got, ev.Kind) }
func (f *freeOnly) HandleFreeBlockDrop(ev Event)   { f.got = append(f.got, ev.Kind) }

type allCaps struct{ freeOnly }

func (a *allCaps) HandleCacheBlockPickup(ev Event) { a.got = append(a.got, ev.Kind) }
func (a *allCaps) HandleCacheBlockDrop(ev Event)   { a.got = append(a.got, ev.Kind) }
func (a *allCaps) HandleCacheSiteDrop(ev Event)    { a.got = append(a.got, ev.Kind) }
func (a *allCaps) HandleNewCacheDrop(ev Event)     { a.got = append(a.got, ev.Kind) }

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("routes by capability", func(t *testing.T) {
		t.Parallel()
		a := &allCaps{}
		for _, k := range []Kind{FreeBlockPickup, NestDrop, CacheBlockPickup, CacheBlockDrop, CacheSiteDrop, NewCacheDrop} {
			Dispatch(a, Event{Kind: k})
		}
		assert.Equal(t, []Kind{FreeBlockPickup, NestDrop, CacheBlockPickup, CacheBlockDrop, CacheSiteDrop, NewCacheDrop}, a.got)
	})

	t.Run("missing capability is fatal", func(t *testing.T) {
		t.Parallel()
		var err error
		func() {
			defer monitoring.RecoverInvariant(&err)
			Dispatch(&freeOnly{}, Event{Kind: CacheBlockDrop, Robot: 4})
		}()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "robot 4")
		assert.Contains(t, err.Error(), "cache-block-drop")
	})

	t.Run("observations are not dispatched", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { Dispatch(&allCaps{}, Event{Kind: BlockFound}) })
	})
}

func TestKind_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "cache-site-drop", CacheSiteDrop.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
	assert.True(t, NestDrop.IsInteraction())
	assert.False(t, CacheVanished.IsInteraction())
}
