package aof

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"redisGo/interface/database"
	"redisGo/lib/utils"
	"redisGo/redis/parser"
	"redisGo/redis/protocol"
)

/*
	快照格式：8字节魔数 + 8字节正文的xxhash64校验和 + 正文。
	正文是一段命令流，逐条重放即可重建整个keyspace，
	与AOF共用一套序列化逻辑。
*/

var snapshotMagic = []byte("RGSNAP01")

var (
	// ErrSnapshotFormat 快照头部损坏
	ErrSnapshotFormat = errors.New("snapshot: bad header")
	// ErrSnapshotChecksum 快照校验和不匹配
	ErrSnapshotChecksum = errors.New("snapshot: checksum mismatch")
)

// SnapshotBytes 把整个存储引擎序列化为带校验和的快照。
// 调用方负责保证序列化期间没有并发写入。
func SnapshotBytes(engine database.DBEngine, dbCount int) []byte {
	var body bytes.Buffer
	for i := 0; i < dbCount; i++ {
		wroteSelect := false
		engine.ForEach(i, func(key string, entity *database.DataEntity, expiration *time.Time) bool {
			if !wroteSelect {
				// 空库不写select，缩小快照体积
				body.Write(protocol.MakeMultiBulkReply(
					utils.ToCmdLine("SELECT", strconv.Itoa(i))).ToBytes())
				wroteSelect = true
			}
			cmd := EntityToCmd(key, entity)
			if cmd != nil {
				body.Write(cmd.ToBytes())
			}
			if expiration != nil {
				body.Write(MakeExpireCmd(key, *expiration).ToBytes())
			}
			return true
		})
	}

	sum := xxhash.Sum64(body.Bytes())
	result := make([]byte, 0, len(snapshotMagic)+8+body.Len())
	result = append(result, snapshotMagic...)
	var sumBuf [8]byte
	binary.BigEndian.PutUint64(sumBuf[:], sum)
	result = append(result, sumBuf[:]...)
	result = append(result, body.Bytes()...)
	return result
}

// ValidateSnapshot 校验快照的魔数与校验和，返回正文部分
func ValidateSnapshot(data []byte) ([]byte, error) {
	headerLen := len(snapshotMagic) + 8
	if len(data) < headerLen {
		return nil, ErrSnapshotFormat
	}
	if !bytes.Equal(data[:len(snapshotMagic)], snapshotMagic) {
		return nil, ErrSnapshotFormat
	}
	expected := binary.BigEndian.Uint64(data[len(snapshotMagic):headerLen])
	body := data[headerLen:]
	if xxhash.Sum64(body) != expected {
		return nil, ErrSnapshotChecksum
	}
	return body, nil
}

// LoadSnapshot 校验并重放快照，每条命令通过exec回调交给调用方执行
func LoadSnapshot(data []byte, exec func(cmdLine CmdLine) error) error {
	body, err := ValidateSnapshot(data)
	if err != nil {
		return err
	}
	replies, err := parser.ParseBytes(body)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		r, ok := reply.(*protocol.MultiBulkReply)
		if !ok {
			return ErrSnapshotFormat
		}
		if err := exec(r.Args); err != nil {
			return err
		}
	}
	return nil
}
