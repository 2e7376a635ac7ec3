package sink

import (
	"os"
	"time"

	"github.com/nsqio/go-diskqueue"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DiskQueueMessageSink spools encoded messages to local disk for a consumer
// reading the same queue directory.
type DiskQueueMessageSink struct {
	gwlog.Log
	backend diskqueue.Interface
}

func NewDiskQueueMessageSink(name, dataDir string) (*DiskQueueMessageSink, error) {
	minMsgSize := int32(1)
	maxMsgSize := int32(1024 * 1024 * 4)
	maxBytesPerFile := int64(1024 * 1024 * 256)
	syncEvery := int64(2500)
	syncTimeout := time.Second * 2
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create diskqueue dir")
	}
	backend := diskqueue.New(
		name,
		dataDir,
		maxBytesPerFile,
		minMsgSize,
		maxMsgSize,
		syncEvery,
		syncTimeout,
		func(lvl diskqueue.LogLevel, f string, args ...interface{}) {
			gwlog.Debug("message spool", zap.String("lvl", lvl.String()), zap.String("f", f), zap.Any("args", args))
		},
	)
	return &DiskQueueMessageSink{
		Log:     gwlog.NewGWLog("DiskQueueMessageSink"),
		backend: backend,
	}, nil
}

// PushMessage implements gateway.MessageSink.
func (d *DiskQueueMessageSink) PushMessage(shard int, m *gateway.Message) {
	if err := d.backend.Put(EncodeMessage(FromGateway(m))); err != nil {
		d.Warn("spool message failed", zap.String("id", m.ID), zap.Int("shard", shard), zap.Error(err))
	}
}

// ReadChan yields spooled messages in order.
func (d *DiskQueueMessageSink) ReadChan() <-chan []byte {
	return d.backend.ReadChan()
}

func (d *DiskQueueMessageSink) Depth() int64 {
	return d.backend.Depth()
}

func (d *DiskQueueMessageSink) Close() error {
	return d.backend.Close()
}
