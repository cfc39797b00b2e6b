package notification

// MessageSender 通知メッセージの送信先
type MessageSender interface {
	Send(message string) error
}

// SenderFunc 関数をMessageSenderとして使うためのアダプタ
type SenderFunc func(message string) error

// Send MessageSenderの実装
func (f SenderFunc) Send(message string) error {
	return f(message)
}
