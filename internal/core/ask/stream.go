package ask

import (
	"errors"
	"fmt"
)

// ErrStreamClosed は終端状態のストリームへの書き込み
var ErrStreamClosed = errors.New("stream already closed")

// StreamState はストリーミング応答の状態
type StreamState int

const (
	StateOpen     StreamState = iota // ヘッダ送信済み、トークン未送信
	StateEmitting                    // 1件以上のトークンを送信中
	StateDone                        // 終端イベント送信済み
	StateErrored                     // エラーで終了
)

func (s StreamState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// EventWriter はトランスポート側のイベント書き込み（SSE, stdout など）
type EventWriter interface {
	WriteToken(token string) error
	WriteDone() error
	WriteError(err error) error
}

// Stream は EventWriter に状態遷移を強制する
// Open -> Emitting -> Done | Errored のみを許可する
type Stream struct {
	w        EventWriter
	state    StreamState
	writable bool
}

// NewStream は Open 状態のストリームを作成する
func NewStream(w EventWriter) *Stream {
	return &Stream{w: w, state: StateOpen, writable: true}
}

// State は現在の状態を返す
func (s *Stream) State() StreamState {
	return s.state
}

func (s *Stream) terminal() bool {
	return s.state == StateDone || s.state == StateErrored
}

// Token はトークンイベントを送信する
// 書き込みに失敗した場合は接続が失われたとみなし Errored へ遷移する
func (s *Stream) Token(token string) error {
	if s.terminal() {
		return ErrStreamClosed
	}
	if err := s.w.WriteToken(token); err != nil {
		s.writable = false
		s.state = StateErrored
		return fmt.Errorf("failed to write token: %w", err)
	}
	s.state = StateEmitting
	return nil
}

// Finish は終端イベントを送信して Done へ遷移する
func (s *Stream) Finish() error {
	if s.terminal() {
		return ErrStreamClosed
	}
	if err := s.w.WriteDone(); err != nil {
		s.writable = false
		s.state = StateErrored
		return fmt.Errorf("failed to write done event: %w", err)
	}
	s.state = StateDone
	return nil
}

// Fail は接続がまだ書き込み可能ならエラーイベントを送信し Errored へ遷移する
func (s *Stream) Fail(cause error) {
	if s.state == StateDone {
		return
	}
	if s.writable && s.state != StateErrored {
		if err := s.w.WriteError(cause); err != nil {
			s.writable = false
		}
	}
	s.state = StateErrored
}

// Abandon は書き込みを行わずに Errored へ遷移する（呼び出し元の切断時）
func (s *Stream) Abandon() {
	if s.terminal() {
		return
	}
	s.writable = false
	s.state = StateErrored
}
