package jenkins

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobURLPath(t *testing.T) {
	assert.Equal(t, "/job/myjob", jobURLPath("myjob"))
	assert.Equal(t, "/job/folder/job/myjob", jobURLPath("folder/myjob"))
	assert.Equal(t, "/job/a/job/b/job/c", jobURLPath("/a/b/c/"))
}

func TestQueueIDFromLocation(t *testing.T) {
	id, err := queueIDFromLocation("https://ci.example.com/queue/item/123/")
	require.NoError(t, err)
	assert.Equal(t, int64(123), id)

	_, err = queueIDFromLocation("")
	assert.Error(t, err)
	_, err = queueIDFromLocation("https://ci.example.com/queue/item/abc/")
	assert.Error(t, err)
}

func TestSubmitJob(t *testing.T) {
	var gotPath, gotBranch, gotUser string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotBranch = r.PostForm.Get("BRANCH")
		w.Header().Set("Location", "http://"+r.Host+"/queue/item/55/")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	queueID, err := client.SubmitJob(context.Background(), "folder/myjob", map[string]string{
		"BRANCH": "42-fix",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(55), queueID)
	assert.Equal(t, "/job/folder/job/myjob/buildWithParameters", gotPath)
	assert.Equal(t, "42-fix", gotBranch)
	assert.Equal(t, "bot", gotUser)
}

func TestSubmitJob_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such job", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	_, err := client.SubmitJob(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestQueueStatus(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/queue/item/1/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"why":"waiting for executor"}`)
	})
	mux.HandleFunc("/queue/item/2/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"executable":{"number":9,"url":"%s/job/myjob/9/"}}`, server.URL)
	})
	mux.HandleFunc("/job/myjob/9/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"building":false,"result":"SUCCESS","duration":61000}`)
	})
	mux.HandleFunc("/queue/item/3/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cancelled":true}`)
	})
	mux.HandleFunc("/queue/item/4/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"executable":{"number":10,"url":"%s/job/myjob/10/"}}`, server.URL)
	})
	mux.HandleFunc("/job/myjob/10/api/json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"building":true,"result":""}`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")

	queued, err := client.QueueStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, queued.State)

	done, err := client.QueueStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, done.State)
	assert.Equal(t, int64(9), done.BuildNumber)
	assert.Equal(t, int64(61), int64(done.Duration.Seconds()))

	aborted, err := client.QueueStatus(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, aborted.State)

	running, err := client.QueueStatus(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, running.State)
}

func TestBuildLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/job/myjob/9/consoleText", r.URL.Path)
		fmt.Fprint(w, "Started by timer\nFinished: SUCCESS\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot", "secret")
	log, err := client.BuildLog(context.Background(), "myjob", 9)
	require.NoError(t, err)
	assert.Contains(t, log, "Finished: SUCCESS")
}
