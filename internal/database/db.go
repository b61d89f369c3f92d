package database

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
    mc := mysql.NewConfig()
    mc.User = user
    mc.Passwd = pass
    mc.Net = "tcp"
    mc.Addr = host + ":" + port
    mc.DBName = name
    // DATETIME -> time.Time, always in UTC
    mc.ParseTime = true
    mc.Loc = time.UTC
    mc.Params = map[string]string{"charset": "utf8mb4"}

    db, err := sql.Open("mysql", mc.FormatDSN())
    if err != nil {
        return nil, fmt.Errorf("open mysql: %w", err)
    }

    // Pool settings. The notifier pins one extra connection per advisory lock.
    db.SetMaxOpenConns(25)
    db.SetMaxIdleConns(25)
    db.SetConnMaxLifetime(30 * time.Minute)

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := db.PingContext(ctx); err != nil {
        _ = db.Close()
        return nil, fmt.Errorf("ping mysql: %w", err)
    }
    return db, nil
}
