package httpgin

type ReserveTableRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	UserName string `json:"user_name" binding:"required"`
}

type ReserveTableResponse struct {
	VisitID string `json:"visit_id"`
	TableID int64  `json:"table_id"`
	Status  string `json:"status"`
}

type JoinVisitRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	UserName string `json:"user_name" binding:"required"`
}

type JoinVisitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

type GuestDecisionRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type RequestSongRequest struct {
	TrackID     string `json:"track_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	DurationSec int    `json:"duration_sec" binding:"gte=0"`
	Thumbnail   string `json:"thumbnail"`
	Greeting    string `json:"greeting"`
	RequestedBy int64  `json:"requested_by" binding:"required"`
}

type RequestSongResponse struct {
	SongID string `json:"song_id"`
	Round  int    `json:"round"`
	SeqNum int    `json:"seq_num"`
}

type LikeSongResponse struct {
	Likes int `json:"likes"`
}

type CallWaiterRequest struct {
	On bool `json:"on"`
}

type LeaveVisitRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

type CompleteVisitRequest struct {
	Points           int `json:"points" binding:"gte=0"`
	ConsumptionCents int `json:"consumption_cents" binding:"gte=0"`
}

type CreateTableRequest struct {
	Name          string `json:"name" binding:"required"`
	Abbreviation  string `json:"abbreviation"`
	SongLimit     int    `json:"song_limit" binding:"gte=0"`
	WelcomeVideo  string `json:"welcome_video"`
	WelcomeExempt bool   `json:"welcome_exempt"`
}

type CreateTableResponse struct {
	TableID int64 `json:"table_id"`
}

type SetTableActiveRequest struct {
	Active bool `json:"active"`
}

type PlayerEventRequest struct {
	Type        string  `json:"type" binding:"required,oneof=ready started ended error buffer"`
	Code        int     `json:"code"`
	BufferedSec float64 `json:"buffered_sec"`
}

type PlaybackCurrentResponse struct {
	URL     string `json:"url"`
	Playing bool   `json:"playing"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
