package models

import "errors"

// 同步引擎的错误分类
var (
	// ErrTransientRemote 远端存储或网络的暂时故障，由持久化网关重试
	ErrTransientRemote = errors.New("transient remote fault")
	// ErrNoSession 没有玩家身份，动作被拒绝且不重试
	ErrNoSession = errors.New("no active session")
	// ErrInvariantViolation 程序错误（例如账本出现负数），本次周期被丢弃
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrBusy 持久化进行中，新动作被拒绝而不是排队
	ErrBusy = errors.New("persistence in flight")
	// ErrNotSellable 出售了目录中没有售价的矿石
	ErrNotSellable = errors.New("ore kind is not sellable")
)
