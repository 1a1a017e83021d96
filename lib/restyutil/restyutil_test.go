package restyutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mutex    sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id string, contents string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.messages[id] = contents
}

func TestDumpClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-test", "1")
		_, _ = w.Write([]byte("<html>snapshot</html>"))
	}))
	defer srv.Close()

	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpClient(client, output)

	_, err := client.R().
		SetFormData(map[string]string{"query_string": "123456"}).
		Post(srv.URL + "/query.asp")
	require.NoError(t, err)

	require.Len(t, output.messages, 1)
	message := output.messages["000001.txt"]
	require.True(t, strings.HasPrefix(message, "---- REQUEST ----"))
	require.Contains(t, message, "query_string=123456")
	require.Contains(t, message, "X-Test: 1")
	require.Contains(t, message, "<html>snapshot</html>")
}

func TestDumpClientError(t *testing.T) {
	output := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	DumpClient(client, output)

	_, err := client.R().Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)
	require.Contains(t, output.messages, "000001.err.txt")
}

func TestDumpClientNilOutput(t *testing.T) {
	client := resty.New()
	DumpClient(client, nil)
}
