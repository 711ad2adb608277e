package xetcd

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"clob/pkg/xlog"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// KV is the part of the etcd client used here
type KV interface {
	clientv3.KV
	clientv3.Lease
}

type Worker struct {
	Cli KV
}

var Shared *Worker
var logger = xlog.GetLogger()

var ErrNotFound = errors.New("not found")

func New(urls []string) (w *Worker, err error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   urls,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return
	}

	w = &Worker{
		Cli: cli,
	}

	return
}

// InitShared connects the shared worker and checks the cluster is reachable
func InitShared(urls []string) (err error) {
	w, err := New(urls)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = w.Cli.Get(ctx, "ping")
	if err != nil {
		return
	}

	Shared = w
	return
}

func (w *Worker) Get(ctx context.Context, k string) (v string, err error) {
	defer func() {
		if err != nil {
			logger.Errorf("xetcd Get k:%s failed with err:%s", k, err)
		} else {
			logger.Debugf("xetcd Get k:%s, v:%s", k, v)
		}
	}()

	r, err := w.Cli.Get(ctx, k)
	if err != nil {
		return
	}
	if r.Kvs == nil || r.Count == 0 {
		err = ErrNotFound
		return
	}

	v = string(r.Kvs[0].Value)
	return
}

func (w *Worker) Put(ctx context.Context, k string, v string) (err error) {
	defer func() {
		if err != nil {
			logger.Errorf("xetcd Put k:%s, v:%s failed with err:%s", k, v, err)
		} else {
			logger.Debugf("xetcd Put k:%s, v:%s", k, v)
		}
	}()

	_, err = w.Cli.Put(ctx, k, v)
	return
}

// ServiceInfo value of a service key
type ServiceInfo struct {
	Addr     string `json:"addr"`
	Instance string `json:"instance"`
	Version  string `json:"version"`
}

// Register puts k under a lease of ttl seconds and keeps it alive until ctx
// is done, the key disappears when the process stops refreshing it
func (w *Worker) Register(ctx context.Context, k string, info ServiceInfo, ttl int64) (err error) {
	logger.Infof("xetcd Register k:%s addr:%s started", k, info.Addr)
	defer func() {
		if err != nil && ctx.Err() == nil {
			logger.Errorf("xetcd Register k:%s failed with err:%s", k, err)
		} else {
			logger.Infof("xetcd Register k:%s done", k)
		}
	}()

	b, err := json.Marshal(info)
	if err != nil {
		return
	}

	lease, err := w.Cli.Grant(ctx, ttl)
	if err != nil {
		return
	}
	_, err = w.Cli.Put(ctx, k, string(b), clientv3.WithLease(lease.ID))
	if err != nil {
		return
	}

	ch, err := w.Cli.KeepAlive(ctx, lease.ID)
	if err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			_, _ = w.Cli.Revoke(rctx, lease.ID)
			cancel()
			return nil
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("lease keepalive closed")
			}
		}
	}
}

// StartRegister registers k, retrying until ctx is done
func (w *Worker) StartRegister(ctx context.Context, k string, info ServiceInfo, ttl int64) {
	round := 0
	for ctx.Err() == nil {
		round++
		err := w.Register(ctx, k, info, ttl)
		if err != nil {
			logger.Warningf("xetcd StartRegister k:%s round:%d failed with err:%s", k, round, err)
		}

		t := time.NewTimer(time.Second)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}
}

// Lookup returns the service registered under k
func (w *Worker) Lookup(ctx context.Context, k string) (info ServiceInfo, err error) {
	v, err := w.Get(ctx, k)
	if err != nil {
		return
	}
	err = json.Unmarshal([]byte(v), &info)
	return
}

func Get(k string) (v string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return Shared.Get(ctx, k)
}

func Put(k string, v string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return Shared.Put(ctx, k, v)
}

func KeyOmeService(symbol string) string {
	return "ome_service_" + strings.ToLower(symbol)
}

func KeyNatsService() string {
	return "nats_ome"
}
