// Package utils 提供任务队列、音频转换等通用工具
package utils

import (
	"fmt"
	"sync"
	"time"
)

// Task 队列任务，Run在出队时才执行，执行后等待Delay再处理下一个任务
type Task struct {
	Run   func()
	Delay time.Duration
}

// TaskQueue 顺序执行的任务队列，由单个工作协程按入队顺序消费
type TaskQueue struct {
	tasks chan Task
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTaskQueue 创建任务队列并启动工作协程
func NewTaskQueue(size int) *TaskQueue {
	if size <= 0 {
		size = 64
	}
	q := &TaskQueue{
		tasks: make(chan Task, size),
		done:  make(chan struct{}),
	}
	go q.worker()
	return q
}

// worker 依次取出任务执行，任务间等待任务自带的延迟
func (q *TaskQueue) worker() {
	defer close(q.done)
	for task := range q.tasks {
		if task.Run != nil {
			task.Run()
		}
		if task.Delay > 0 {
			time.Sleep(task.Delay)
		}
	}
}

// Add 将任务加入队列
func (q *TaskQueue) Add(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("任务队列已关闭")
	}
	q.tasks <- task
	return nil
}

// Len 返回当前排队中的任务数
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}

// Close 关闭队列并等待剩余任务执行完毕
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	<-q.done
}
