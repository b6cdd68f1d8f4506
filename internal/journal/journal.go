// Package journal 把会话内的关键事件（下单、成交、对冲、熔断）落盘，
// 供盘后复盘。存储用 Badger：追加为主、单写者、崩溃可恢复，
// 正好是这里的访问模式。
//
// Journal 为 nil 时所有方法都是空操作，核心路径不需要判空配置。
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "journal")

// Entry 一条事件记录。
type Entry struct {
	Session string    `json:"session"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Fields  any       `json:"fields,omitempty"`
}

// Journal 会话事件日志。Append 只能由交易主循环调用。
type Journal struct {
	db      *badger.DB
	session string
	seq     uint64
}

// Open 打开（或创建）journal 目录。每次会话生成独立的 UUID 前缀，
// 同一目录可以叠多场记录。
func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db, session: uuid.NewString()}, nil
}

// Session 本场会话 ID。
func (j *Journal) Session() string {
	if j == nil {
		return ""
	}
	return j.session
}

// Append 追加一条记录。落盘失败只告警不中断——journal 是旁路，
// 不能反过来影响交易路径。
func (j *Journal) Append(at time.Time, kind string, fields any) {
	if j == nil {
		return
	}
	j.seq++
	e := Entry{Session: j.session, Seq: j.seq, At: at, Kind: kind, Fields: fields}
	data, err := json.Marshal(e)
	if err != nil {
		log.WithError(err).WithField("kind", kind).Warn("journal marshal failed")
		return
	}
	key := fmt.Sprintf("%s/%016d", j.session, j.seq)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		log.WithError(err).WithField("kind", kind).Warn("journal write failed")
	}
}

// Replay 按序回放本场（或指定会话）的全部记录。
func (j *Journal) Replay(session string, fn func(Entry) error) error {
	if j == nil {
		return nil
	}
	if session == "" {
		session = j.session
	}
	prefix := []byte(session + "/")
	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 刷盘并关闭。
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
