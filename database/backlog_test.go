package database

import (
	"bytes"
	"testing"
)

func TestBacklogAppendAndRead(t *testing.T) {
	backlog := newBacklog(1024)
	backlog.appendBytes([]byte("hello"))
	backlog.appendBytes([]byte("world"))

	if backlog.currentOffset != 10 {
		t.Errorf("expect offset 10, actually %d", backlog.currentOffset)
	}
	data, ok := backlog.getSince(0)
	if !ok || !bytes.Equal(data, []byte("helloworld")) {
		t.Errorf("unexpected read result: %v %q", ok, data)
	}
	// 从中间位置读取
	data, ok = backlog.getSince(5)
	if !ok || !bytes.Equal(data, []byte("world")) {
		t.Errorf("unexpected partial read: %v %q", ok, data)
	}
	// 已追平时返回空
	data, ok = backlog.getSince(10)
	if !ok || len(data) != 0 {
		t.Errorf("expect empty read at tail, actually %v %q", ok, data)
	}
}

func TestBacklogEviction(t *testing.T) {
	backlog := newBacklog(8)
	backlog.appendBytes([]byte("abcdefgh"))
	backlog.appendBytes([]byte("ijkl"))

	if backlog.startOffset != 4 {
		t.Errorf("expect startOffset 4, actually %d", backlog.startOffset)
	}
	// 被挤出缓冲区的位置无法继续增量读取
	if _, ok := backlog.getSince(0); ok {
		t.Error("expect read before startOffset to fail")
	}
	if !backlog.isValidOffset(4) || backlog.isValidOffset(3) {
		t.Error("unexpected offset validity")
	}
	data, ok := backlog.getSince(4)
	if !ok || !bytes.Equal(data, []byte("efghijkl")) {
		t.Errorf("unexpected read after eviction: %v %q", ok, data)
	}
}
