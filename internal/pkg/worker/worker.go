package worker

import (
	"context"
	"time"

	"stylehub/pkg/logger"

	"go.uber.org/zap"
)

// RefundTask 一笔待执行的退款义务
type RefundTask struct {
	OrderID string
	Retry   int // 重试次数
}

// Executor 执行单个订单的退款，由退款模块注入
type Executor func(ctx context.Context, orderID string) error

type WorkerPool struct {
	TaskQueue  chan RefundTask
	RetryQueue chan RefundTask // 重试队列
	Execute    Executor
	WorkerNum  int
	MaxRetry   int // 最大重试次数
}

func NewWorkerPool(execute Executor, workerNum int, bufferSize int, maxRetry int) *WorkerPool {
	if maxRetry <= 0 {
		maxRetry = 3
	}
	return &WorkerPool{
		TaskQueue:  make(chan RefundTask, bufferSize),
		RetryQueue: make(chan RefundTask, bufferSize/2),
		Execute:    execute,
		WorkerNum:  workerNum,
		MaxRetry:   maxRetry,
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	// 启动重试处理协程
	go p.retryWorker()
	logger.Log.Info("refund worker pool started", zap.Int("workers", p.WorkerNum))
}

func (p *WorkerPool) worker(id int) {
	for task := range p.TaskQueue {
		if err := p.Execute(context.Background(), task.OrderID); err != nil {
			logger.Log.Warn("refund task failed",
				zap.Int("worker", id),
				zap.String("order_id", task.OrderID),
				zap.Error(err),
			)

			// 未达到最大重试次数则进入重试队列
			if task.Retry < p.MaxRetry {
				task.Retry++
				select {
				case p.RetryQueue <- task:
				default:
					p.logFailedTask(task, err)
				}
			} else {
				p.logFailedTask(task, err)
			}
		}
	}
}

func (p *WorkerPool) retryWorker() {
	for task := range p.RetryQueue {
		// 退避后重试，结果不明的网关调用需要先被查询确认
		time.Sleep(time.Duration(task.Retry) * time.Second)

		select {
		case p.TaskQueue <- task:
		default:
			p.logFailedTask(task, nil)
		}
	}
}

func (p *WorkerPool) logFailedTask(task RefundTask, err error) {
	// 超限的义务留在数据库里，下一轮扫描会重新捞起
	logger.Log.Error("refund task dropped",
		zap.String("order_id", task.OrderID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

func (p *WorkerPool) AddTask(task RefundTask) {
	select {
	case p.TaskQueue <- task:
	default:
		p.logFailedTask(task, nil)
	}
}
