package restyutil

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output    InstrumentOutput
	idcounter *uint64
}

// DumpClient writes every exchange made by `client` to `output`, the message
// id is a counter so files sort in request order. Failed requests are written
// with just the request half.
// `output` can be nil, if it is, then the function is a no-op
func DumpClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	i := instrumentCtx{output: output, idcounter: &idcounter}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type messageIdKeyType int

var messageIdKey messageIdKeyType

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	messageId := fmt.Sprintf("%06d", atomic.AddUint64(i.idcounter, 1))
	req.SetContext(context.WithValue(req.Context(), messageIdKey, messageId))
	return nil
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	messageId, ok := res.Request.Context().Value(messageIdKey).(string)
	if !ok {
		return nil
	}
	i.output.Write(messageId+".txt", formatHttpMessage(res))
	return nil
}

func (i instrumentCtx) onError(req *resty.Request, err error) {
	messageId, ok := req.Context().Value(messageIdKey).(string)
	if !ok {
		return
	}
	i.output.Write(messageId+".err.txt", fmt.Sprintf(
		errorInfoTemplate,
		req.Method, req.URL,
		formatRequestBody(req.RawRequest),
		strconv.Quote(err.Error()),
	))
}
