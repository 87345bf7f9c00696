package chat

// SubmitMsg is emitted when the user presses enter with text in the composer
type SubmitMsg struct {
	Text string
}
