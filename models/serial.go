package models

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicateMessage is returned when a chat message was already stored,
// typically a redelivery of the same push.
var ErrDuplicateMessage = errors.New("chat message already stored")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func duplicateOr(msg *ChatMessage, err error) error {
	if isDuplicateKeyErr(err) {
		return fmt.Errorf("%w: chat %d message %d", ErrDuplicateMessage, msg.ChatID, msg.MessageID)
	}
	return err
}

// SerialLockKey maps a submitter id onto a stable 31-bit advisory lock key.
func SerialLockKey(userID int64) uint32 {
	return crc32.ChecksumIEEE([]byte(strconv.FormatInt(userID, 10))) & 0x7fffffff
}

func serialLockName(userID int64) string {
	return fmt.Sprintf("serial:%d", SerialLockKey(userID))
}

// SerialAllocator stamps new messages with a per-submitter sequence number.
type SerialAllocator struct {
	DB          *gorm.DB
	Enabled     bool
	LockTimeout time.Duration
}

// CreateWithSerial inserts msg with serial max+1 for its submitter.
//
// GET_LOCK is connection-scoped, so the lock, the transaction and the release all
// run on one pinned connection. The lock is released only after commit, which keeps
// two concurrent messages of one submitter from reading the same max.
// With tracking disabled the serial is 0 and no lock is taken.
func (a *SerialAllocator) CreateWithSerial(ctx context.Context, msg *ChatMessage) error {
	db := a.DB.WithContext(ctx)
	if !a.Enabled {
		msg.SerialNum = 0
		return duplicateOr(msg, db.Create(msg).Error)
	}

	lockName := serialLockName(msg.UserID)
	return db.Connection(func(conn *gorm.DB) error {
		if err := acquireNamedLock(conn, lockName, a.lockTimeout()); err != nil {
			return err
		}
		defer releaseNamedLock(conn, lockName)

		return conn.Transaction(func(tx *gorm.DB) error {
			var maxSerial int
			if err := tx.Model(&ChatMessage{}).
				Where("user_id = ?", msg.UserID).
				Select("COALESCE(MAX(serial_num), 0)").
				Scan(&maxSerial).Error; err != nil {
				return fmt.Errorf("read max serial: %w", err)
			}
			msg.SerialNum = maxSerial + 1
			return duplicateOr(msg, tx.Create(msg).Error)
		})
	})
}

func (a *SerialAllocator) lockTimeout() int {
	secs := int(a.LockTimeout / time.Second)
	if secs <= 0 {
		return 10
	}
	return secs
}

// acquireNamedLock takes a MySQL advisory lock on the connection behind conn.
func acquireNamedLock(conn *gorm.DB, name string, timeoutSeconds int) error {
	var ok *int
	if err := conn.Raw("SELECT GET_LOCK(?, ?)", name, timeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok == nil || *ok != 1 {
		return fmt.Errorf("could not acquire lock %s", name)
	}
	return nil
}

func releaseNamedLock(conn *gorm.DB, name string) {
	var _ok *int
	_ = conn.Raw("SELECT RELEASE_LOCK(?)", name).Scan(&_ok).Error
}
