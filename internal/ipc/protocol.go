package ipc

type Request struct {
	Command string `json:"command"`
	Text    string `json:"text,omitempty"`
}

type Response struct {
	OK      bool    `json:"ok"`
	State   string  `json:"state,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Level   float64 `json:"level,omitempty"`
}
