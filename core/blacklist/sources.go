package blacklist

import (
	"encoding/json"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// Source supplies raw blacklist entries. A failed fetch reports its
// failure mode and contributes nothing; it never aborts the caller.
type Source interface {
	Fetch() ([]Entry, types.FetchStatus)
}

// FileSource reads the blacklist from a JSON file on disk. An absent
// file is a valid empty contribution.
type FileSource struct {
	path string
	log  log.Logger
}

func NewFileSource(path string) *FileSource {
	return &FileSource{
		path: path,
		log:  log.New("component", "blacklist"),
	}
}

func (f *FileSource) Fetch() ([]Entry, types.FetchStatus) {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		f.log.Trace("No local blacklist file", "path", f.path)
		return nil, types.FetchOK
	}
	data, err := ioutil.ReadFile(f.path)
	if err != nil {
		f.log.Error("Unable to read blacklist file", "path", f.path, "err", err)
		return nil, types.FetchUnreachable
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		f.log.Error("Unable to parse blacklist file", "path", f.path, "err", err)
		return nil, types.FetchMalformed
	}
	if !ValidEntries(entries) {
		f.log.Trace("Local blacklist was formatted incorrectly or was empty", "path", f.path)
		return nil, types.FetchMalformed
	}
	return entries, types.FetchOK
}

// RemoteSource fetches the shared blacklist over HTTP.
type RemoteSource struct {
	url    string
	client *http.Client
	log    log.Logger
}

func NewRemoteSource(url string, timeout time.Duration) *RemoteSource {
	return &RemoteSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
		// A down API would otherwise log the same error every round.
		log: log.NewThrottlingLogger(log.New("component", "blacklist")),
	}
}

func (r *RemoteSource) Fetch() ([]Entry, types.FetchStatus) {
	res, err := r.client.Get(r.url)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			r.log.Error("Blacklist API request timed out", "url", r.url)
			return nil, types.FetchTimeout
		}
		r.log.Error("Unable to connect to the blacklist API", "url", r.url, "err", err)
		return nil, types.FetchUnreachable
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		r.log.Warn("Blacklist API returned unexpected status code", "status", res.StatusCode)
		return nil, types.FetchMalformed
	}
	var entries []Entry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		r.log.Error("Unable to read the response from the blacklist API", "err", err)
		return nil, types.FetchMalformed
	}
	if !ValidEntries(entries) {
		r.log.Trace("Remote blacklist was formatted incorrectly or was empty")
		return nil, types.FetchMalformed
	}
	return entries, types.FetchOK
}
