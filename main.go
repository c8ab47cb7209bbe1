package main

import (
	"fmt"
	"os"

	"redisGo/config"
	"redisGo/lib/logger"
	"redisGo/network"
	RedisServer "redisGo/redis/server"
	"redisGo/tcp"
)

var banner = `
                 _ _       ____
   _ __ ___  __| (_)___  / ___| ___
  | '__/ _ \/ _' | / __|| |  _ / _ \
  | | |  __/ (_| | \__ \| |_| | (_) |
  |_|  \___|\__,_|_|___/ \____|\___/
`

const configFile string = "redis.conf"

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func main() {
	print(banner)
	logger.Setup(&logger.Settings{
		Path:    "logs",
		Name:    "redisGo",
		Ext:     "log",
		MaxSize: 64,
	})
	if fileExists(configFile) {
		config.SetupConfig(configFile)
	}

	addr := fmt.Sprintf("%s:%d", config.Properties.Bind, config.Properties.Port)
	if config.Properties.UseGnet {
		srv := network.NewServer()
		if err := srv.ListenAndServe("tcp://" + addr); err != nil {
			logger.Fatal(err)
		}
		return
	}
	err := tcp.ListenAndServeWithSignal(&tcp.Config{
		Address: addr,
	}, RedisServer.MakeHandler())
	if err != nil {
		logger.Fatal(err)
	}
}
