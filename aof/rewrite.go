package aof

import (
	"io"
	"io/ioutil"
	"os"
	"strconv"

	"redisGo/lib/logger"
	"redisGo/lib/utils"
	"redisGo/redis/protocol"
)

func (persister *Persister) newRewriteHandler() *Persister {
	h := &Persister{}
	h.aofFilename = persister.aofFilename
	h.db = persister.tmpDBMaker()
	return h
}

// RewriteCtx 保存一次AOF重写的上下文
type RewriteCtx struct {
	tmpFile  *os.File
	fileSize int64
	// 重写开始时选中的db
	dbIdx int
}

// Rewrite 重写AOF文件使其更紧凑
func (persister *Persister) Rewrite() error {
	ctx, err := persister.StartRewrite()
	if err != nil {
		return err
	}
	err = persister.DoRewrite(ctx)
	if err != nil {
		return err
	}

	persister.FinishRewrite(ctx)
	return nil
}

// DoRewrite 实际执行重写，测试时单独调用
func (persister *Persister) DoRewrite(ctx *RewriteCtx) error {
	return persister.generateAof(ctx)
}

// StartRewrite 准备重写：暂停写入、落盘并记录当前文件大小
func (persister *Persister) StartRewrite() (*RewriteCtx, error) {
	// 暂停aof写入，截取一个一致的文件边界
	persister.pausingAof.Lock()
	defer persister.pausingAof.Unlock()

	err := persister.aofFile.Sync()
	if err != nil {
		logger.Warn("fsync failed")
		return nil, err
	}

	// get current aof file size
	fileInfo, _ := os.Stat(persister.aofFilename)
	filesize := fileInfo.Size()

	// create tmp file
	file, err := ioutil.TempFile("", "*.aof")
	if err != nil {
		logger.Warn("tmp file create failed")
		return nil, err
	}
	return &RewriteCtx{
		tmpFile:  file,
		fileSize: filesize,
		dbIdx:    persister.currentDB,
	}, nil
}

// FinishRewrite 把重写期间新产生的命令追加到临时文件，然后原子替换
func (persister *Persister) FinishRewrite(ctx *RewriteCtx) {
	persister.pausingAof.Lock()
	defer persister.pausingAof.Unlock()

	tmpFile := ctx.tmpFile
	// 把重写开始后追加的命令拷贝到临时文件
	src, err := os.Open(persister.aofFilename)
	if err != nil {
		logger.Error("open aofFilename failed: " + err.Error())
		return
	}
	defer func() {
		_ = src.Close()
	}()
	_, err = src.Seek(ctx.fileSize, 0)
	if err != nil {
		logger.Error("seek failed: " + err.Error())
		return
	}
	// 临时文件中最后的select可能与重写开始时不同，先同步db选择
	data := protocol.MakeMultiBulkReply(utils.ToCmdLine("SELECT", strconv.Itoa(ctx.dbIdx))).ToBytes()
	_, err = tmpFile.Write(data)
	if err != nil {
		logger.Error("tmp file rewrite failed: " + err.Error())
		return
	}
	// 拷贝数据
	_, err = io.Copy(tmpFile, src)
	if err != nil {
		logger.Error("copy aof filed failed: " + err.Error())
		return
	}

	// 用重写后的文件替换原AOF文件
	_ = persister.aofFile.Close()
	_ = os.Rename(tmpFile.Name(), persister.aofFilename)

	// 重新打开文件描述符保证后续写入正常
	aofFile, err := os.OpenFile(persister.aofFilename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		panic(err)
	}
	persister.aofFile = aofFile

	// 追加一条select保证持久化文件中的db选择正确
	data = protocol.MakeMultiBulkReply(utils.ToCmdLine("SELECT", strconv.Itoa(persister.currentDB))).ToBytes()
	_, err = persister.aofFile.Write(data)
	if err != nil {
		panic(err)
	}
}
