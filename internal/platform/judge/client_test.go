package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecuteParsesJudgeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/submissions", r.URL.Path)
		require.Equal(t, "false", r.URL.Query().Get("base64_encoded"))
		require.Equal(t, "true", r.URL.Query().Get("wait"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "print(1)", req["source_code"])
		require.Equal(t, "1\n", req["expected_output"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"stdout": "1\n",
			"time": "0.021",
			"memory": 3456.0,
			"status": {"id": 3, "description": "Accepted"}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	res, err := client.Execute(context.Background(), "print(1)", "71", "", "1\n")
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, res.StatusID)
	require.Equal(t, "1\n", res.Stdout)
	require.InDelta(t, 0.021, res.TimeSeconds, 1e-9)
	require.Equal(t, 3456, res.MemoryKb)
}

func TestExecuteWrongAnswerIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"stdout": "2\n", "status": {"id": 4, "description": "Wrong Answer"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	res, err := client.Execute(context.Background(), "print(2)", "71", "", "1\n")
	require.NoError(t, err) // a judged wrong answer is a result, not a transport failure
	require.Equal(t, StatusWrongAnswer, res.StatusID)
}

func TestExecuteUpstreamErrorSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second)
	_, err := client.Execute(context.Background(), "print(1)", "71", "", "1\n")
	require.Error(t, err)
}

func TestExecuteUnreachableJudge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(srv.URL, time.Second)
	_, err := client.Execute(context.Background(), "print(1)", "71", "", "1\n")
	require.Error(t, err)
}
