package ws

import (
	"fmt"
	"sync"
	"testing"
)

// TestRegistry 测试房间注册表
func TestRegistry(t *testing.T) {
	t.Run("JoinCreatesRoom", func(t *testing.T) {
		r := NewRegistry()
		sess := &Session{ID: "s1"}

		r.Join(sess, "alpha")

		if got := r.RoomCount(); got != 1 {
			t.Fatalf("expected 1 room, got %d", got)
		}
		if members := r.Members("alpha"); len(members) != 1 || members[0] != sess {
			t.Errorf("unexpected members: %v", members)
		}
	})

	t.Run("JoinIsIdempotent", func(t *testing.T) {
		r := NewRegistry()
		sess := &Session{ID: "s1"}

		r.Join(sess, "alpha")
		r.Join(sess, "alpha")

		if members := r.Members("alpha"); len(members) != 1 {
			t.Errorf("expected 1 member after duplicate join, got %d", len(members))
		}
	})

	t.Run("EmptyRoomIDIsNoop", func(t *testing.T) {
		r := NewRegistry()
		sess := &Session{ID: "s1"}

		r.Join(sess, "")
		r.Leave(sess, "")

		if got := r.RoomCount(); got != 0 {
			t.Errorf("expected no rooms, got %d", got)
		}
	})

	t.Run("LeaveDeletesEmptyRoom", func(t *testing.T) {
		r := NewRegistry()
		s1 := &Session{ID: "s1"}
		s2 := &Session{ID: "s2"}

		r.Join(s1, "alpha")
		r.Join(s2, "alpha")

		r.Leave(s1, "alpha")
		if got := r.RoomCount(); got != 1 {
			t.Fatalf("room must survive while members remain, got %d rooms", got)
		}

		r.Leave(s2, "alpha")
		if got := r.RoomCount(); got != 0 {
			t.Errorf("empty room must be deleted, got %d rooms", got)
		}
		if members := r.Members("alpha"); members != nil {
			t.Errorf("expected nil members for deleted room, got %v", members)
		}
	})

	t.Run("LeaveUnknownRoomIsNoop", func(t *testing.T) {
		r := NewRegistry()
		r.Leave(&Session{ID: "s1"}, "ghost")

		if got := r.RoomCount(); got != 0 {
			t.Errorf("expected no rooms, got %d", got)
		}
	})

	t.Run("RoomsAreIsolated", func(t *testing.T) {
		r := NewRegistry()
		s1 := &Session{ID: "s1"}
		s2 := &Session{ID: "s2"}

		r.Join(s1, "alpha")
		r.Join(s2, "beta")

		if members := r.Members("alpha"); len(members) != 1 || members[0] != s1 {
			t.Errorf("alpha members leaked: %v", members)
		}
		if members := r.Members("beta"); len(members) != 1 || members[0] != s2 {
			t.Errorf("beta members leaked: %v", members)
		}
	})
}

// TestRegistryConcurrent 并发加入/离开下的不变量
func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			sess := &Session{ID: fmt.Sprintf("s%d", i)}
			room := fmt.Sprintf("room-%d", i%4)

			for j := 0; j < 100; j++ {
				r.Join(sess, room)
				r.Members(room)
				r.Leave(sess, room)
			}
		}(i)
	}
	wg.Wait()

	// 所有会话都已离开，不应留下空房间
	if got := r.RoomCount(); got != 0 {
		t.Errorf("expected no rooms after churn, got %d: %v", got, r.Rooms())
	}
}
