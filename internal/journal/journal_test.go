package journal

import (
	"testing"
	"time"
)

func TestAppendAndReplay(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	base := time.Unix(100, 0).UTC()
	j.Append(base, "fill", map[string]int{"order_id": 1, "volume": 10})
	j.Append(base.Add(time.Second), "reject", map[string]int{"order_id": 2})

	var kinds []string
	err = j.Replay("", func(e Entry) error {
		kinds = append(kinds, e.Kind)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 2 || kinds[0] != "fill" || kinds[1] != "reject" {
		t.Fatalf("回放顺序不符: %v", kinds)
	}
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal

	// 所有方法对 nil 都必须安全
	j.Append(time.Now(), "fill", nil)
	if got := j.Session(); got != "" {
		t.Fatalf("Session = %q, want empty", got)
	}
	if err := j.Replay("", func(Entry) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSessionsIsolated(t *testing.T) {
	dir := t.TempDir()

	j1, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	j1.Append(time.Unix(1, 0), "fill", nil)
	session1 := j1.Session()
	if err := j1.Close(); err != nil {
		t.Fatal(err)
	}

	j2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()
	j2.Append(time.Unix(2, 0), "reject", nil)

	// 新会话只看到自己的记录
	count := 0
	if err := j2.Replay("", func(Entry) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("本场记录数 = %d, want 1", count)
	}

	// 指定旧会话 ID 仍可回放
	count = 0
	if err := j2.Replay(session1, func(Entry) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("旧会话记录数 = %d, want 1", count)
	}
}
