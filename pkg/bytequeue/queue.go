package bytequeue

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// ByteQueue is a FIFO of bytes: Write appends, Read/ReadByte consume from the
// front. Consumed bytes are compacted away on the next Write.
type ByteQueue struct {
	buffer   *bytebufferpool.ByteBuffer
	off      int    // 已消费的位置
	consumed uint64 // 累计消费字节数
	written  uint64 // 累计写入字节数
}

func New() *ByteQueue {
	return &ByteQueue{
		buffer: bytebufferpool.Get(),
	}
}

// Write 写入字节
func (b *ByteQueue) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.off > 0 && b.off == len(b.buffer.B) {
		b.buffer.B = b.buffer.B[:0]
		b.off = 0
	} else if b.off > 0 && b.off >= cap(b.buffer.B)/2 {
		n := copy(b.buffer.B, b.buffer.B[b.off:])
		b.buffer.B = b.buffer.B[:n]
		b.off = 0
	}
	n, err := b.buffer.Write(p)
	if err != nil {
		return 0, err
	}
	b.written += uint64(n)
	return n, nil
}

// Len 未消费的字节数
func (b *ByteQueue) Len() int {
	return len(b.buffer.B) - b.off
}

// Read 读取未消费的字节，队列为空时返回io.EOF
func (b *ByteQueue) Read(p []byte) (int, error) {
	if b.Len() == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buffer.B[b.off:])
	b.off += n
	b.consumed += uint64(n)
	return n, nil
}

func (b *ByteQueue) ReadByte() (byte, error) {
	if b.Len() == 0 {
		return 0, io.EOF
	}
	c := b.buffer.B[b.off]
	b.off++
	b.consumed++
	return c, nil
}

// Peek 从当前读位置开始查看n个字节，不消费
func (b *ByteQueue) Peek(n int) []byte {
	if n > b.Len() {
		n = b.Len()
	}
	return b.buffer.B[b.off : b.off+n]
}

// Written 累计写入的字节数
func (b *ByteQueue) Written() uint64 {
	return b.written
}

// Consumed 累计消费的字节数
func (b *ByteQueue) Consumed() uint64 {
	return b.consumed
}

// Reset 清空队列并归还缓冲区，之后不可再使用
func (b *ByteQueue) Reset() {
	if b.buffer == nil {
		return
	}
	b.buffer.Reset()
	bytebufferpool.Put(b.buffer)
	b.buffer = nil
	b.off = 0
}
