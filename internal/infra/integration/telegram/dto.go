package telegram

type SendMessageInput struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode,omitempty"`
	DisableNotification bool   `json:"disable_notification"`
	DisableWebPreview   bool   `json:"disable_web_page_preview"`
}

type SendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Result      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result,omitempty"`
}
