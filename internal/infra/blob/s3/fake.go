package s3

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const fakeEndpoint = "https://s3.fake.local"

// NewFake returns a Store whose client talks to an in-process bucket instead
// of the network. The bucket serves the object calls Store makes: head, get,
// put, delete and prefix listing, with user metadata kept per object.
func NewFake(bucket string) *Store {
	store, _ := newFake(bucket)
	return store
}

func newFake(bucket string) (*Store, *fakeBucket) {
	if bucket == "" {
		bucket = "surveycore"
	}
	fb := newFakeBucket(bucket)
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDFAKE", "fake-secret", ""),
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fb}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(fakeEndpoint)
	})
	return &Store{client: client, bucket: bucket, presign: s3.NewPresignClient(client)}, fb
}

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	etag        string
	modified    time.Time
}

// fakeBucket is an http.RoundTripper holding the objects of one bucket.
type fakeBucket struct {
	name string
	now  func() time.Time

	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeBucket(name string) *fakeBucket {
	return &fakeBucket{
		name:    name,
		now:     func() time.Time { return time.Now().UTC() },
		objects: make(map[string]fakeObject),
	}
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(req.URL.Path, "/"), "/")
	if bucket != b.name {
		return xmlError(http.StatusNotFound, "NoSuchBucket"), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return b.list(req.URL.Query().Get("prefix"))
	case req.Method == http.MethodPut:
		return b.put(req, key)
	case req.Method == http.MethodGet || req.Method == http.MethodHead:
		obj, ok := b.objects[key]
		if !ok {
			if req.Method == http.MethodHead {
				return emptyResponse(http.StatusNotFound, nil), nil
			}
			return xmlError(http.StatusNotFound, "NoSuchKey"), nil
		}
		h := objectHeaders(obj)
		if req.Method == http.MethodHead {
			return emptyResponse(http.StatusOK, h), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Header: h, Body: io.NopCloser(bytes.NewReader(obj.body)), ContentLength: int64(len(obj.body))}, nil
	case req.Method == http.MethodDelete:
		delete(b.objects, key)
		return emptyResponse(http.StatusNoContent, nil), nil
	default:
		return xmlError(http.StatusMethodNotAllowed, "MethodNotAllowed"), nil
	}
}

func (b *fakeBucket) put(req *http.Request, key string) (*http.Response, error) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if isAWSChunked(req.Header) {
		decoded, ok := decodeAWSChunked(body)
		if !ok {
			return xmlError(http.StatusBadRequest, "IncompleteBody"), nil
		}
		body = decoded
	}
	sum := md5.Sum(body)
	obj := fakeObject{
		body:        body,
		contentType: req.Header.Get("Content-Type"),
		etag:        hex.EncodeToString(sum[:]),
		modified:    b.now().Truncate(time.Second),
	}
	for name, values := range req.Header {
		if meta, ok := strings.CutPrefix(strings.ToLower(name), "x-amz-meta-"); ok && len(values) > 0 {
			if obj.metadata == nil {
				obj.metadata = make(map[string]string)
			}
			obj.metadata[meta] = values[0]
		}
	}
	b.objects[key] = obj
	return emptyResponse(http.StatusOK, http.Header{"Etag": {strconv.Quote(obj.etag)}}), nil
}

type listResult struct {
	XMLName     xml.Name    `xml:"ListBucketResult"`
	Name        string      `xml:"Name"`
	Prefix      string      `xml:"Prefix"`
	KeyCount    int         `xml:"KeyCount"`
	IsTruncated bool        `xml:"IsTruncated"`
	Contents    []listEntry `xml:"Contents"`
}

type listEntry struct {
	Key          string `xml:"Key"`
	Size         int    `xml:"Size"`
	ETag         string `xml:"ETag"`
	LastModified string `xml:"LastModified"`
}

func (b *fakeBucket) list(prefix string) (*http.Response, error) {
	res := listResult{Name: b.name, Prefix: prefix}
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		res.Contents = append(res.Contents, listEntry{
			Key:          key,
			Size:         len(obj.body),
			ETag:         strconv.Quote(obj.etag),
			LastModified: obj.modified.Format(time.RFC3339),
		})
	}
	sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
	res.KeyCount = len(res.Contents)
	payload, err := xml.Marshal(res)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(bytes.NewReader(payload)),
	}, nil
}

func objectHeaders(obj fakeObject) http.Header {
	h := http.Header{
		"Content-Length": {strconv.Itoa(len(obj.body))},
		"Etag":           {strconv.Quote(obj.etag)},
		"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
	}
	if obj.contentType != "" {
		h.Set("Content-Type", obj.contentType)
	}
	for k, v := range obj.metadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}

func emptyResponse(status int, h http.Header) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(nil))}
}

func xmlError(status int, code string) *http.Response {
	payload := "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Error><Code>" + code + "</Code></Error>"
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(strings.NewReader(payload)),
	}
}

func isAWSChunked(h http.Header) bool {
	return strings.Contains(h.Get("Content-Encoding"), "aws-chunked") || h.Get("X-Amz-Decoded-Content-Length") != ""
}

// decodeAWSChunked strips aws-chunked framing: hex sizes with optional
// ";chunk-signature=" extensions, a zero-size terminator and optional
// trailing checksum headers.
func decodeAWSChunked(b []byte) ([]byte, bool) {
	r := bufio.NewReader(bytes.NewReader(b))
	var out bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, false
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || size < 0 {
			return nil, false
		}
		if size == 0 {
			return out.Bytes(), true
		}
		if _, err := io.CopyN(&out, r, size); err != nil {
			return nil, false
		}
		var crlf [2]byte
		if _, err := io.ReadFull(r, crlf[:]); err != nil || string(crlf[:]) != "\r\n" {
			return nil, false
		}
	}
}
