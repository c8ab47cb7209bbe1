package aof

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"redisGo/config"
	"redisGo/interface/database"
	"redisGo/lib/logger"
	"redisGo/lib/utils"
	"redisGo/redis/connection"
	"redisGo/redis/parser"
	"redisGo/redis/protocol"
)

// CmdLine 表示一行命令
type CmdLine = [][]byte

const (
	aofQueueSize = 1 << 16
)

const (
	// FsyncAlways 每条命令落盘一次
	FsyncAlways = "always"
	// FsyncEverySec 每秒落盘一次
	FsyncEverySec = "everysec"
	// FsyncNo 不主动落盘，交给操作系统
	FsyncNo = "no"
)

type payload struct {
	cmdLine CmdLine
	dbIndex int
	wg      *sync.WaitGroup
}

// Persister 接收写命令并追加到AOF文件
type Persister struct {
	ctx        context.Context
	cancel     context.CancelFunc
	db         database.DBEngine
	tmpDBMaker func() database.DBEngine
	// aofChan 写命令的缓冲队列
	aofChan chan *payload
	// aofFile append file 文件描述符
	aofFile *os.File
	// aofFilename append file 路径
	aofFilename string
	// aofFsync AOF文件的刷盘策略
	aofFsync string
	// aofFinished 用于aof关闭时通知主协程落盘完成
	aofFinished chan struct{}
	// pausingAof 用于暂停aof写入，在重写期间持有
	pausingAof sync.Mutex
	currentDB  int
}

// NewPersister 创建Persister，load为true时先重放已有的AOF文件
func NewPersister(db database.DBEngine, filename string, load bool, fsync string,
	tmpDBMaker func() database.DBEngine) (*Persister, error) {
	persister := &Persister{}
	persister.aofFilename = filename
	persister.aofFsync = fsync
	persister.db = db
	persister.tmpDBMaker = tmpDBMaker
	persister.currentDB = 0
	if load {
		persister.LoadAof(0)
	}
	aofFile, err := os.OpenFile(persister.aofFilename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	persister.aofFile = aofFile
	persister.aofChan = make(chan *payload, aofQueueSize)
	persister.aofFinished = make(chan struct{})
	go func() {
		persister.listenCmd()
	}()
	ctx, cancel := context.WithCancel(context.Background())
	persister.ctx = ctx
	persister.cancel = cancel
	if persister.aofFsync == FsyncEverySec {
		persister.fsyncEverySecond()
	}
	return persister, nil
}

// SaveCmdLine 把命令送入AOF队列
func (persister *Persister) SaveCmdLine(dbIndex int, cmdLine CmdLine) {
	if persister.aofChan == nil {
		return
	}
	if persister.aofFsync == FsyncAlways {
		// always策略同步写入，保证返回前已落盘
		p := &payload{
			cmdLine: cmdLine,
			dbIndex: dbIndex,
		}
		persister.writeAof(p)
		return
	}
	persister.aofChan <- &payload{
		cmdLine: cmdLine,
		dbIndex: dbIndex,
	}
}

// listenCmd 从队列中取命令依次写入文件
func (persister *Persister) listenCmd() {
	for p := range persister.aofChan {
		persister.writeAof(p)
	}
	persister.aofFinished <- struct{}{}
}

func (persister *Persister) writeAof(p *payload) {
	// 重写期间暂停写入
	persister.pausingAof.Lock()
	defer persister.pausingAof.Unlock()
	// 每条命令属于某个db，db切换时插入select命令
	if p.dbIndex != persister.currentDB {
		selectCmd := utils.ToCmdLine("SELECT", strconv.Itoa(p.dbIndex))
		data := protocol.MakeMultiBulkReply(selectCmd).ToBytes()
		_, err := persister.aofFile.Write(data)
		if err != nil {
			logger.Warn(err)
			return // skip this command
		}
		persister.currentDB = p.dbIndex
	}
	data := protocol.MakeMultiBulkReply(p.cmdLine).ToBytes()
	_, err := persister.aofFile.Write(data)
	if err != nil {
		logger.Warn(err)
	}
	if persister.aofFsync == FsyncAlways {
		_ = persister.aofFile.Sync()
	}
}

// LoadAof 重放AOF文件，maxBytes为0时读到文件末尾
func (persister *Persister) LoadAof(maxBytes int) {
	// persister.db.Exec可能再次写入aofChan，加载期间先摘除
	aofChan := persister.aofChan
	persister.aofChan = nil
	defer func(aofChan chan *payload) {
		persister.aofChan = aofChan
	}(aofChan)

	file, err := os.Open(persister.aofFilename)
	if err != nil {
		if _, ok := err.(*os.PathError); ok {
			return
		}
		logger.Warn(err)
		return
	}
	defer file.Close()

	var reader io.Reader
	if maxBytes > 0 {
		reader = io.LimitReader(file, int64(maxBytes))
	} else {
		reader = file
	}
	ch := parser.ParseStream(reader)
	fakeConn := connection.NewFakeConn() // 只用来保存dbIndex
	for p := range ch {
		if p.Err != nil {
			if p.Err == io.EOF {
				break
			}
			logger.Error("parse error: " + p.Err.Error())
			continue
		}
		if p.Data == nil {
			logger.Error("empty payload")
			continue
		}
		r, ok := p.Data.(*protocol.MultiBulkReply)
		if !ok {
			logger.Error("require multi bulk protocol")
			continue
		}
		ret := persister.db.Exec(fakeConn, r.Args)
		if protocol.IsErrorReply(ret) {
			logger.Error("exec err", string(ret.ToBytes()))
		}
		if strings.ToLower(string(r.Args[0])) == "select" {
			// execSelect success, here must be no error
			dbIndex, err := strconv.Atoi(string(r.Args[1]))
			if err == nil {
				persister.currentDB = dbIndex
			}
		}
	}
}

// Fsync 将aofFile落盘
func (persister *Persister) Fsync() {
	persister.pausingAof.Lock()
	if err := persister.aofFile.Sync(); err != nil {
		logger.Error("fsync failed: " + err.Error())
	}
	persister.pausingAof.Unlock()
}

// Close 优雅停止AOF持久化
func (persister *Persister) Close() {
	if persister.aofFile != nil {
		close(persister.aofChan)
		<-persister.aofFinished // wait for aof finished
		err := persister.aofFile.Close()
		if err != nil {
			logger.Warn(err)
		}
	}
	persister.cancel()
}

// fsyncEverySecond 每秒落盘一次
func (persister *Persister) fsyncEverySecond() {
	ticker := time.NewTicker(time.Second)
	go func() {
		for {
			select {
			case <-ticker.C:
				persister.Fsync()
			case <-persister.ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

func (persister *Persister) generateAof(ctx *RewriteCtx) error {
	// rewrite aof tmpFile
	tmpFile := ctx.tmpFile
	// load aof tmpFile
	tmpAof := persister.newRewriteHandler()
	tmpAof.LoadAof(int(ctx.fileSize))
	for i := 0; i < config.Properties.Databases; i++ {
		// select db
		data := protocol.MakeMultiBulkReply(utils.ToCmdLine("SELECT", strconv.Itoa(i))).ToBytes()
		_, err := tmpFile.Write(data)
		if err != nil {
			return err
		}
		// dump db
		tmpAof.db.ForEach(i, func(key string, entity *database.DataEntity, expiration *time.Time) bool {
			cmd := EntityToCmd(key, entity)
			if cmd != nil {
				_, _ = tmpFile.Write(cmd.ToBytes())
			}
			if expiration != nil {
				cmd := MakeExpireCmd(key, *expiration)
				if cmd != nil {
					_, _ = tmpFile.Write(cmd.ToBytes())
				}
			}
			return true
		})
	}
	return nil
}
