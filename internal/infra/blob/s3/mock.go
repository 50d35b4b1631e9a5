package s3

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const metaHeaderPrefix = "X-Amz-Meta-"

// NewMockForTests returns a Store talking to an in-process fake of the S3
// object API. It understands HEAD, GET, PUT, DELETE and ListObjectsV2 and
// keeps user metadata, which the disposal archive relies on.
func NewMockForTests() *Store {
	fake := &fakeBucket{objects: make(map[string]fakeObject), now: func() time.Time { return time.Now().UTC() }}
	store, err := New(context.Background(), Config{
		Region:          "us-east-1",
		Bucket:          "assetledger-archive",
		Endpoint:        "https://archive.s3.test",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: fake},
	})
	if err != nil {
		panic(fmt.Errorf("mock s3 store: %w", err))
	}
	return store
}

type fakeObject struct {
	body         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
}

func (o fakeObject) etag() string {
	return fmt.Sprintf("\"%x\"", len(o.body))
}

// fakeBucket implements http.RoundTripper. The bucket path segment is ignored.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	now     func() time.Time
}

func (f *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix"))
	}
	key := objectKey(req.URL.Path)
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		header := obj.header()
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, header, nil), nil
		}
		return respond(http.StatusOK, header, obj.body), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeAWSChunked(body); ok {
			body = decoded
		}
		obj := fakeObject{
			body:         body,
			contentType:  req.Header.Get("Content-Type"),
			metadata:     make(map[string]string),
			lastModified: f.now(),
		}
		for name, values := range req.Header {
			canonical := http.CanonicalHeaderKey(name)
			if strings.HasPrefix(canonical, metaHeaderPrefix) && len(values) > 0 {
				obj.metadata[strings.ToLower(strings.TrimPrefix(canonical, metaHeaderPrefix))] = values[0]
			}
		}
		f.objects[key] = obj
		return respond(http.StatusOK, http.Header{"Etag": {obj.etag()}}, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (o fakeObject) header() http.Header {
	header := http.Header{
		"Content-Length": {strconv.Itoa(len(o.body))},
		"Etag":           {o.etag()},
		"Last-Modified":  {o.lastModified.Format(http.TimeFormat)},
	}
	if o.contentType != "" {
		header.Set("Content-Type", o.contentType)
	}
	for k, v := range o.metadata {
		header.Set(metaHeaderPrefix+k, v)
	}
	return header
}

type listResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []listContent `xml:"Contents"`
}

type listContent struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

func (f *fakeBucket) list(prefix string) (*http.Response, error) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	result := listResult{}
	for _, k := range keys {
		obj := f.objects[k]
		result.Contents = append(result.Contents, listContent{
			Key:          k,
			Size:         len(obj.body),
			ETag:         obj.etag(),
			LastModified: obj.lastModified.Format(time.RFC3339),
		})
	}
	body, err := xml.Marshal(result)
	if err != nil {
		return nil, err
	}
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, append([]byte(xml.Header), body...)), nil
}

func objectKey(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func respond(status int, header http.Header, body []byte) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// decodeAWSChunked unwraps a single-chunk aws-chunked upload of the form
// "<hex size>\r\n<body>\r\n0\r\n[trailers]".
func decodeAWSChunked(b []byte) ([]byte, bool) {
	header, rest, ok := bytes.Cut(b, []byte("\r\n"))
	if !ok {
		return nil, false
	}
	sizeField, _, _ := bytes.Cut(header, []byte(";"))
	size, err := strconv.ParseInt(string(sizeField), 16, 64)
	if err != nil || size < 0 || int64(len(rest)) < size+2 {
		return nil, false
	}
	body, tail := rest[:size], rest[size:]
	if !bytes.HasPrefix(tail, []byte("\r\n0")) {
		return nil, false
	}
	return body, true
}
