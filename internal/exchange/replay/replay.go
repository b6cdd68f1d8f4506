// Package replay 行情回放：从 CSV 文件或 HTTP 地址加载历史行情，按时间轴重放到事件通道。
//
// CSV 格式（表头必须存在）：
//
//	elapsed,kind,instrument,sequence,
//	ask_price_0..4,ask_volume_0..4,bid_price_0..4,bid_volume_0..4
//
// kind=book 的行是订单簿快照；kind=trade 的行复用 ask_price_0/ask_volume_0
// 作为成交价和成交量。elapsed 是相对回放起点的秒数。
package replay

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/quotekit/autotrader/internal/exchange"
)

var log = logrus.WithField("component", "replay")

// Record 一条带时间偏移的回放事件。
type Record struct {
	Elapsed time.Duration
	Event   exchange.Event
}

// Source 已加载的行情序列。
type Source struct {
	records []Record
}

// Load 从本地文件或 http(s) 地址加载行情 CSV。
func Load(location string) (*Source, error) {
	var reader io.Reader
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		resp, err := resty.New().SetTimeout(30 * time.Second).R().Get(location)
		if err != nil {
			return nil, errors.Wrapf(err, "下载行情失败: %s", location)
		}
		if resp.IsError() {
			return nil, errors.Errorf("下载行情失败: %s 返回 %d", location, resp.StatusCode())
		}
		reader = strings.NewReader(string(resp.Body()))
	} else {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrapf(err, "打开行情文件失败: %s", location)
		}
		defer f.Close()
		reader = f
	}
	return Parse(reader)
}

// Parse 解析 CSV 行情流。
func Parse(r io.Reader) (*Source, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "读取表头失败")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"elapsed", "kind", "instrument", "sequence"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("表头缺少列: %s", required)
		}
	}

	src := &Source{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "第 %d 行解析失败", line)
		}

		rec, err := parseRow(col, row)
		if err != nil {
			return nil, errors.Wrapf(err, "第 %d 行", line)
		}
		src.records = append(src.records, rec)
	}

	log.Infof("已加载 %d 条行情记录", len(src.records))
	return src, nil
}

func parseRow(col map[string]int, row []string) (Record, error) {
	field := func(name string) (int, error) {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return 0, nil
		}
		s := strings.TrimSpace(row[idx])
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}

	elapsedIdx := col["elapsed"]
	if elapsedIdx >= len(row) {
		return Record{}, errors.New("缺少 elapsed 字段")
	}
	elapsedSec, err := strconv.ParseFloat(strings.TrimSpace(row[elapsedIdx]), 64)
	if err != nil {
		return Record{}, errors.Wrap(err, "elapsed 解析失败")
	}
	elapsed := time.Duration(elapsedSec * float64(time.Second))

	instrument, err := field("instrument")
	if err != nil {
		return Record{}, errors.Wrap(err, "instrument 解析失败")
	}
	sequence, err := field("sequence")
	if err != nil {
		return Record{}, errors.Wrap(err, "sequence 解析失败")
	}

	kind := strings.TrimSpace(row[col["kind"]])
	switch kind {
	case "book":
		ev := exchange.BookUpdate{
			Instrument: exchange.Instrument(instrument),
			Sequence:   sequence,
		}
		for i := 0; i < exchange.TopLevels; i++ {
			n := strconv.Itoa(i)
			if ev.AskPrices[i], err = field("ask_price_" + n); err != nil {
				return Record{}, err
			}
			if ev.AskVolumes[i], err = field("ask_volume_" + n); err != nil {
				return Record{}, err
			}
			if ev.BidPrices[i], err = field("bid_price_" + n); err != nil {
				return Record{}, err
			}
			if ev.BidVolumes[i], err = field("bid_volume_" + n); err != nil {
				return Record{}, err
			}
		}
		return Record{Elapsed: elapsed, Event: ev}, nil
	case "trade":
		price, err := field("ask_price_0")
		if err != nil {
			return Record{}, err
		}
		volume, err := field("ask_volume_0")
		if err != nil {
			return Record{}, err
		}
		ev := exchange.TradeTicks{
			Instrument: exchange.Instrument(instrument),
			Ticks:      []exchange.Tick{{Price: price, Volume: volume}},
		}
		return Record{Elapsed: elapsed, Event: ev}, nil
	default:
		return Record{}, errors.Errorf("未知行类型: %q", kind)
	}
}

// Len 返回记录条数。
func (s *Source) Len() int {
	return len(s.records)
}

// Records 返回全部记录，按加载顺序。
func (s *Source) Records() []Record {
	return s.records
}

// Stream 把记录按时间轴发送到 sink。speed 是回放倍速，<=0 表示不限速。
// sink 由调用方负责关闭。
func (s *Source) Stream(ctx context.Context, sink chan<- exchange.Event, speed float64) error {
	start := time.Now()
	for _, rec := range s.records {
		if speed > 0 {
			due := start.Add(time.Duration(float64(rec.Elapsed) / speed))
			if wait := time.Until(due); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sink <- rec.Event:
		}
	}
	return nil
}
