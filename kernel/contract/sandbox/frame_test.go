package sandbox

import (
	"errors"
	"testing"

	"github.com/xuperchain/xreplay/kernel/contract"
	"github.com/xuperchain/xreplay/lib/storage/kvdb"
	_ "github.com/xuperchain/xreplay/lib/storage/kvdb/leveldb"
)

func newKVState(t *testing.T) *KVState {
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{KVEngineType: kvdb.KVEngineTypeLDB})
	if err != nil {
		t.Fatal(err)
	}
	state := NewKVState(db, 1<<20)
	t.Cleanup(func() { state.Close() })
	return state
}

func committedStates(t *testing.T) map[string]contract.CommittedState {
	return map[string]contract.CommittedState{
		"mem": NewMemState(),
		"kv":  newKVState(t),
	}
}

func mustGet(t *testing.T, f *Frame, bucket, key, expect string) {
	t.Helper()
	v, err := f.Get(bucket, key)
	if err != nil {
		t.Fatalf("get %s/%s failed.err:%v", bucket, key, err)
	}
	if string(v) != expect {
		t.Fatalf("get %s/%s expect %s got %s", bucket, key, expect, v)
	}
}

func mustMissing(t *testing.T, f *Frame, bucket, key string) {
	t.Helper()
	if _, err := f.Get(bucket, key); err != ErrNotFound {
		t.Fatalf("expect %s/%s not found, got %v", bucket, key, err)
	}
}

func TestFrameNearestWriteWins(t *testing.T) {
	for name, committed := range committedStates(t) {
		t.Run(name, func(t *testing.T) {
			committed.Apply([]*contract.WriteOp{
				{Key: MakeRawKey("c1", "a"), Value: []byte("committed")},
				{Key: MakeRawKey("c1", "b"), Value: []byte("committed")},
			})
			store := NewStore(committed)
			root, _ := store.OpenFrame(nil)
			root.Put("c1", "a", []byte("root"))
			child, err := store.OpenFrame(root)
			if err != nil {
				t.Fatal(err)
			}
			child.Put("c1", "b", []byte("child"))
			child.Del("c1", "a")

			mustGet(t, root, "c1", "a", "root")
			mustGet(t, root, "c1", "b", "committed")
			mustMissing(t, child, "c1", "a")
			mustGet(t, child, "c1", "b", "child")
			mustMissing(t, child, "c2", "a")

			if child.Depth() != 1 || root.Depth() != 0 || !root.IsRoot() {
				t.Error("unexpected depth")
			}
		})
	}
}

func TestFrameCommitAndDiscard(t *testing.T) {
	for name, committed := range committedStates(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(committed)
			root, _ := store.OpenFrame(nil)
			root.Put("c1", "k", []byte("root"))
			root.AddLog(&contract.Log{ContractID: "c1", Event: "Root"})

			ok, _ := store.OpenFrame(root)
			ok.Put("c2", "k", []byte("ok"))
			ok.AddLog(&contract.Log{ContractID: "c2", Event: "Kept"})
			if err := ok.Commit(); err != nil {
				t.Fatal(err)
			}

			failed, _ := store.OpenFrame(root)
			failed.Put("c3", "k", []byte("failed"))
			failed.AddLog(&contract.Log{ContractID: "c3", Event: "Dropped"})
			if err := failed.Discard(); err != nil {
				t.Fatal(err)
			}

			mustGet(t, root, "c2", "k", "ok")
			mustMissing(t, root, "c3", "k")
			if logs := root.Logs(); len(logs) != 2 || logs[1].Event != "Kept" {
				t.Fatalf("unexpected logs %+v", logs)
			}

			// nothing reaches committed state before the root commits
			if _, err := committed.Get(MakeRawKey("c2", "k")); !errors.Is(err, contract.ErrKeyNotFound) {
				t.Fatal("child commit leaked into committed state")
			}
			if err := root.Commit(); err != nil {
				t.Fatal(err)
			}
			v, err := committed.Get(MakeRawKey("c2", "k"))
			if err != nil || string(v) != "ok" {
				t.Fatalf("root commit lost child write: %s %v", v, err)
			}
			if _, err := committed.Get(MakeRawKey("c3", "k")); !errors.Is(err, contract.ErrKeyNotFound) {
				t.Fatal("discarded write committed")
			}
		})
	}
}

func TestRootDiscardErasesSubtree(t *testing.T) {
	committed := NewMemState()
	before, _ := Digest(committed)

	store := NewStore(committed)
	root, _ := store.OpenFrame(nil)
	child, _ := store.OpenFrame(root)
	grandchild, _ := store.OpenFrame(child)
	grandchild.Put("c1", "k", []byte("v"))
	grandchild.Commit()
	child.Commit()
	root.Discard()

	after, _ := Digest(committed)
	if before != after {
		t.Fatal("discarded root changed committed state")
	}
}

func TestFrameDeleteCommitted(t *testing.T) {
	for name, committed := range committedStates(t) {
		t.Run(name, func(t *testing.T) {
			committed.Apply([]*contract.WriteOp{{Key: MakeRawKey("c1", "gone"), Value: []byte("x")}})
			store := NewStore(committed)
			root, _ := store.OpenFrame(nil)
			child, _ := store.OpenFrame(root)
			child.Del("c1", "gone")
			child.Commit()
			mustMissing(t, root, "c1", "gone")
			root.Commit()
			if _, err := committed.Get(MakeRawKey("c1", "gone")); !errors.Is(err, contract.ErrKeyNotFound) {
				t.Fatalf("delete not applied, err %v", err)
			}
		})
	}
}

func TestReadOnlyFrame(t *testing.T) {
	store := NewStore(NewMemState())
	root, _ := store.OpenReadOnlyFrame(nil)
	if err := root.Put("c1", "k", []byte("v")); err != ErrReadOnly {
		t.Fatalf("expect ErrReadOnly, got %v", err)
	}
	child, _ := store.OpenFrame(root)
	if !child.IsReadOnly() {
		t.Fatal("child must inherit read-only")
	}
	if err := child.Del("c1", "k"); err != ErrReadOnly {
		t.Fatalf("expect ErrReadOnly, got %v", err)
	}
	if err := child.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := root.Commit(); err != ErrReadOnly {
		t.Fatalf("read-only root must not commit, got %v", err)
	}
	if err := root.Discard(); err != nil {
		t.Fatal(err)
	}
}

func TestFrameTreeViolations(t *testing.T) {
	store := NewStore(NewMemState())
	root, _ := store.OpenFrame(nil)
	child, _ := store.OpenFrame(root)

	if err := root.Commit(); err != ErrFrameTree {
		t.Fatalf("resolving with open child: %v", err)
	}
	if err := root.Discard(); err != ErrFrameTree {
		t.Fatalf("discarding with open child: %v", err)
	}
	child.Discard()
	if err := child.Commit(); err != ErrFrameResolved {
		t.Fatalf("double resolve: %v", err)
	}
	if err := child.Put("c1", "k", nil); err != ErrFrameResolved {
		t.Fatalf("write after resolve: %v", err)
	}
	if _, err := child.Get("c1", "k"); err != ErrFrameResolved {
		t.Fatalf("read after resolve: %v", err)
	}
	root.Commit()
	if _, err := store.OpenFrame(root); err != ErrFrameResolved {
		t.Fatalf("open under resolved parent: %v", err)
	}
}

func TestFrameSelect(t *testing.T) {
	for name, committed := range committedStates(t) {
		t.Run(name, func(t *testing.T) {
			committed.Apply([]*contract.WriteOp{
				{Key: MakeRawKey("c1", "balanceOf/0xa"), Value: []byte("1")},
				{Key: MakeRawKey("c1", "balanceOf/0xb"), Value: []byte("2")},
				{Key: MakeRawKey("c1", "name"), Value: []byte("token")},
				{Key: MakeRawKey("c10", "balanceOf/0xz"), Value: []byte("9")},
			})
			store := NewStore(committed)
			root, _ := store.OpenFrame(nil)
			root.Put("c1", "balanceOf/0xc", []byte("3"))
			child, _ := store.OpenFrame(root)
			child.Del("c1", "balanceOf/0xa")
			child.Put("c1", "balanceOf/0xb", []byte("20"))

			iter, err := child.Select("c1", "balanceOf/")
			if err != nil {
				t.Fatal(err)
			}
			defer iter.Close()
			var got []string
			for iter.Next() {
				got = append(got, string(iter.Key())+"="+string(iter.Value()))
			}
			want := []string{"balanceOf/0xb=20", "balanceOf/0xc=3"}
			if len(got) != len(want) {
				t.Fatalf("expect %v got %v", want, got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("expect %v got %v", want, got)
				}
			}
		})
	}
}

func TestSnapshotIsolation(t *testing.T) {
	for name, committed := range committedStates(t) {
		t.Run(name, func(t *testing.T) {
			committed.Apply([]*contract.WriteOp{{Key: MakeRawKey("c1", "k"), Value: []byte("v1")}})
			snap, err := committed.Snapshot()
			if err != nil {
				t.Fatal(err)
			}
			defer snap.Release()
			committed.Apply([]*contract.WriteOp{{Key: MakeRawKey("c1", "k"), Value: []byte("v2")}})

			v, err := snap.Get(MakeRawKey("c1", "k"))
			if err != nil || string(v) != "v1" {
				t.Fatalf("snapshot read %s %v", v, err)
			}
			v, _ = committed.Get(MakeRawKey("c1", "k"))
			if string(v) != "v2" {
				t.Fatalf("committed read %s", v)
			}
		})
	}
}

func TestDigestAcrossBackends(t *testing.T) {
	ops := []*contract.WriteOp{
		{Key: MakeRawKey("c2", "x"), Value: []byte("2")},
		{Key: MakeRawKey("c1", "a"), Value: []byte("1")},
		{Key: MakeRawKey("c1", "b"), Value: []byte("")},
	}
	mem := NewMemState()
	kv := newKVState(t)
	mem.Apply(ops)
	// same content, different write order
	kv.Apply([]*contract.WriteOp{ops[2], ops[0], ops[1]})

	d1, err := Digest(mem)
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := Digest(kv)
	if d1 != d2 {
		t.Fatalf("digest differs: %s %s", d1, d2)
	}
	if len(d1) != 66 {
		t.Fatalf("unexpected digest %s", d1)
	}

	mem.Apply([]*contract.WriteOp{{Key: MakeRawKey("c1", "a"), Value: []byte("changed")}})
	d3, _ := Digest(mem)
	if d3 == d1 {
		t.Fatal("digest ignores values")
	}
	p1, _ := DigestPrefix(mem, BucketPrefix("c2"))
	p2, _ := DigestPrefix(kv, BucketPrefix("c2"))
	if p1 != p2 {
		t.Fatal("bucket digest differs")
	}
}

func TestKVStateCache(t *testing.T) {
	state := newKVState(t)
	key := MakeRawKey("c1", "k")
	state.Apply([]*contract.WriteOp{{Key: key, Value: []byte("v1")}})
	if v, _ := state.Get(key); string(v) != "v1" {
		t.Fatalf("get %s", v)
	}
	state.Apply([]*contract.WriteOp{{Key: key, Del: true}})
	if _, err := state.Get(key); !errors.Is(err, contract.ErrKeyNotFound) {
		t.Fatalf("stale cache after delete: %v", err)
	}
}

func TestReadOnlyStore(t *testing.T) {
	committed := NewMemState()
	committed.Apply([]*contract.WriteOp{{Key: MakeRawKey("c1", "k"), Value: []byte("v")}})
	snap, _ := committed.Snapshot()
	defer snap.Release()

	store := NewReadOnlyStore(snap)
	root, _ := store.OpenFrame(nil)
	mustGet(t, root, "c1", "k", "v")
	root.Put("c1", "k", []byte("changed"))
	if err := root.Commit(); err != ErrReadOnly {
		t.Fatalf("snapshot store must not commit, got %v", err)
	}
	root.Discard()
	v, _ := committed.Get(MakeRawKey("c1", "k"))
	if string(v) != "v" {
		t.Fatal("snapshot store leaked a write")
	}
}
