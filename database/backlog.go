package database

/*
	复制积压缓冲区。保存最近传播给从节点的命令字节流，
	偏移量为从复制流开始计数的字节数。缓冲区有界，
	超过上限时丢弃最旧的数据并前移startOffset，
	此后早于startOffset的部分重同步请求只能退化为全量同步。
*/

type replBacklog struct {
	buf           []byte
	startOffset   int64 // buf[0]对应的复制偏移量
	currentOffset int64 // 下一个写入字节的复制偏移量
	maxSize       int64
}

func newBacklog(maxSize int64) *replBacklog {
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	return &replBacklog{
		maxSize: maxSize,
	}
}

func (backlog *replBacklog) appendBytes(bin []byte) {
	backlog.buf = append(backlog.buf, bin...)
	backlog.currentOffset += int64(len(bin))
	if int64(len(backlog.buf)) > backlog.maxSize {
		overflow := int64(len(backlog.buf)) - backlog.maxSize
		backlog.buf = backlog.buf[overflow:]
		backlog.startOffset += overflow
	}
}

// isValidOffset 判断能否从给定偏移量处继续传输
func (backlog *replBacklog) isValidOffset(offset int64) bool {
	return offset >= backlog.startOffset && offset <= backlog.currentOffset
}

// getSince 取出从给定偏移量到末尾的字节流，偏移量不在缓冲区内时返回false
func (backlog *replBacklog) getSince(offset int64) ([]byte, bool) {
	if !backlog.isValidOffset(offset) {
		return nil, false
	}
	start := offset - backlog.startOffset
	result := make([]byte, backlog.currentOffset-offset)
	copy(result, backlog.buf[start:])
	return result, true
}
