package xreplay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gammazero/deque"
	"github.com/mitchellh/mapstructure"

	"github.com/xuperchain/xreplay/kernel/contract"
)

const (
	DefaultReadAhead = 64
	maxLineSize      = 4 * 1024 * 1024
)

// Feed yields inbound events in log order, io.EOF after the last one
type Feed interface {
	Next(ctx context.Context) (*contract.InboundEvent, error)
}

// JSONLinesFeed reads one json event per line. Blank lines and lines
// starting with '#' are skipped.
type JSONLinesFeed struct {
	scanner   *bufio.Scanner
	buffer    deque.Deque
	readAhead int
	line      int
	// 读取或解析错误，在缓冲事件消费完后返回
	err error
}

var _ Feed = (*JSONLinesFeed)(nil)

func NewJSONLinesFeed(r io.Reader, readAhead int) *JSONLinesFeed {
	if readAhead <= 0 {
		readAhead = DefaultReadAhead
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLinesFeed{scanner: scanner, readAhead: readAhead}
}

func (f *JSONLinesFeed) Next(ctx context.Context) (*contract.InboundEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.buffer.Len() == 0 && f.err == nil {
		f.fill()
	}
	if f.buffer.Len() > 0 {
		return f.buffer.PopFront().(*contract.InboundEvent), nil
	}
	return nil, f.err
}

// fill reads up to readAhead events, stopping at the first error
func (f *JSONLinesFeed) fill() {
	for f.buffer.Len() < f.readAhead {
		if !f.scanner.Scan() {
			f.err = f.scanner.Err()
			if f.err == nil {
				f.err = io.EOF
			}
			return
		}
		f.line++
		line := bytes.TrimSpace(f.scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		event, err := DecodeEvent(line)
		if err != nil {
			f.err = fmt.Errorf("feed line %d: %v", f.line, err)
			return
		}
		f.buffer.PushBack(event)
	}
}

// DecodeEvent decodes one json event. Numeric fields may be json numbers or
// decimal strings, argument numbers keep full precision.
func DecodeEvent(data []byte) (*contract.InboundEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	raw := make(map[string]interface{})
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode event json failed: %v", err)
	}

	event := new(contract.InboundEvent)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           event,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode event failed: %v", err)
	}
	return event, nil
}

// SliceFeed replays events held in memory
type SliceFeed struct {
	events []*contract.InboundEvent
	next   int
}

func NewSliceFeed(events []*contract.InboundEvent) *SliceFeed {
	return &SliceFeed{events: events}
}

func (s *SliceFeed) Next(ctx context.Context) (*contract.InboundEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	event := s.events[s.next]
	s.next++
	return event, nil
}
