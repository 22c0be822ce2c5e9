// Package userstore loads the authenticated user record a JWT identifier
// resolves to, including the tunnel IPv4 address assigned to that user in
// MySQL.
package userstore

import (
	"fmt"
	"net/netip"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Row is the GORM model backing the users table. Column names and the
// enabled flag match the original schema; local_tunnel_address is stored
// as the big-endian uint32 form of an IPv4 address.
type Row struct {
	ID                 uint32 `gorm:"column:id;primaryKey"`
	Username           string `gorm:"column:username"`
	LocalTunnelAddress uint32 `gorm:"column:local_tunnel_address"`
	Enabled            bool   `gorm:"column:enabled"`
}

// TableName pins the GORM model to the existing users table.
func (Row) TableName() string { return "users" }

// User is the resolved, domain-shaped record handed to the control-plane
// handshake.
type User struct {
	ID         uint32
	Username   string
	TunnelIPv4 netip.Addr
}

// Store resolves user records by ID, mirroring the original's
// "WHERE id = ? and enabled = 1" lookup.
type Store struct {
	db *gorm.DB
}

// Open connects to MySQL using dsn, a standard go-sql-driver DSN.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("userstore: open: %w", err)
	}
	return &Store{db: db}, nil
}

// FindEnabledByID returns the enabled user with the given ID, or an error
// if no such user exists.
func (s *Store) FindEnabledByID(id uint32) (User, error) {
	var row Row
	err := s.db.Where("id = ? AND enabled = 1", id).First(&row).Error
	if err != nil {
		return User{}, fmt.Errorf("userstore: find user %d: %w", id, err)
	}

	addr := uint32ToAddr(row.LocalTunnelAddress)
	return User{ID: row.ID, Username: row.Username, TunnelIPv4: addr}, nil
}

func uint32ToAddr(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{
		byte(v >> 24),
		byte(v >> 16),
		byte(v >> 8),
		byte(v),
	})
}
