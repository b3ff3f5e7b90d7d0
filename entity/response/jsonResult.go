package response

// JsonResult is the HUD api envelope.
type JsonResult struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func JsonResultSuccess(data any) JsonResult {
	return JsonResult{Code: 0, Msg: "ok", Data: data}
}

func JsonResultError(msg string) JsonResult {
	return JsonResult{Code: 1, Msg: msg}
}
