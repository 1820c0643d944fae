package apdo

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makryl/apdo/cache"
	"github.com/makryl/apdo/model"
)

// Defaults 是每个语句创建时拷贝走的默认配置
// 不可变, 不要在运行期修改
type Defaults struct {
	// PrimaryKey 没有元数据时的默认主键列名
	PrimaryKey string
}

type ConnOption func(conn *Conn)

func ConnWithLogger(log *zap.Logger) ConnOption {
	return func(conn *Conn) {
		conn.log = log
	}
}

func ConnWithCache(c cache.Cache) ConnOption {
	return func(conn *Conn) {
		conn.cache = c
	}
}

func ConnWithRegistry(r *model.Registry) ConnOption {
	return func(conn *Conn) {
		conn.registry = r
	}
}

func ConnWithPrimaryKey(name string) ConnOption {
	return func(conn *Conn) {
		conn.defaults.PrimaryKey = name
	}
}

func ConnWithMiddlewares(mdls ...Middleware) ConnOption {
	return func(conn *Conn) {
		conn.mdls = mdls
	}
}

// ConnWithValidator 给某张表挂上写入校验器, Row.Save 前会执行
func ConnWithValidator(table string, v *Validator) ConnOption {
	return func(conn *Conn) {
		conn.validators[table] = v
	}
}

// Conn 是全部语句共享的连接句柄
// 懒连接: 第一次真正执行语句时才建立数据库连接
type Conn struct {
	driver string
	dsn    string

	// 保护懒连接的建立
	mutex sync.Mutex
	db    *sql.DB

	id         string
	defaults   Defaults
	registry   *model.Registry
	cache      cache.Cache
	log        *zap.Logger
	mdls       []Middleware
	validators map[string]*Validator

	// 单调递增的计数器, 并发场景必须原子
	statementCount atomic.Int64
	executedCount  atomic.Int64
	cachedCount    atomic.Int64
	lastStatement  atomic.Pointer[Statement]
}

// Open 不会立刻建立连接, 只记下驱动和DSN
func Open(driver string, dsn string, opts ...ConnOption) *Conn {
	conn := newConn(opts...)
	conn.driver = driver
	conn.dsn = dsn
	return conn
}

// OpenDB 直接复用外部的 *sql.DB, 多用于测试(sqlmock)
func OpenDB(db *sql.DB, opts ...ConnOption) *Conn {
	conn := newConn(opts...)
	conn.db = db
	return conn
}

func newConn(opts ...ConnOption) *Conn {
	conn := &Conn{
		id: uuid.NewString(),
		defaults: Defaults{
			PrimaryKey: "id",
		},
		registry:   model.NewRegistry(),
		log:        zap.NewNop(),
		validators: make(map[string]*Validator, 4),
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Connected 是否已经建立过连接
func (c *Conn) Connected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.db != nil
}

func (c *Conn) ensure() (*sql.DB, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	db, err := sql.Open(c.driver, c.dsn)
	if err != nil {
		return nil, err
	}
	c.db = db
	return db, nil
}

func (c *Conn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Table 创建一个绑定元数据的语句
// 未注册的表用默认主键兜底
func (c *Conn) Table(name string) *Statement {
	s := c.newStatement()
	s.table = name
	s.meta = c.tableMeta(name)
	return s
}

// Statement 创建一个原生SQL语句
// 原生语句不走语句缓存, 也不参与行级缓存
func (c *Conn) Statement(query string, args ...any) *Statement {
	s := c.newStatement()
	s.raw = query
	s.rawArgs = args
	return s
}

func (c *Conn) newStatement() *Statement {
	c.statementCount.Add(1)
	return &Statement{
		conn:     c,
		defaults: c.defaults,
	}
}

func (c *Conn) tableMeta(name string) *model.Table {
	if t, ok := c.registry.Table(name); ok {
		return t
	}
	return &model.Table{
		Name:       name,
		PrimaryKey: []string{c.defaults.PrimaryKey},
	}
}

// StatementCount 创建过的语句数
func (c *Conn) StatementCount() int64 {
	return c.statementCount.Load()
}

// ExecutedCount 真正发给数据库的语句数
func (c *Conn) ExecutedCount() int64 {
	return c.executedCount.Load()
}

// CachedCount 被缓存挡下来的查询数
func (c *Conn) CachedCount() int64 {
	return c.cachedCount.Load()
}

// LastStatement 最后一条执行过的语句
func (c *Conn) LastStatement() *Statement {
	return c.lastStatement.Load()
}

func (c *Conn) queryRows(ctx context.Context, qc *QueryContext) (*sql.Rows, error) {
	var root Handler = func(ctx context.Context, qc *QueryContext) *QueryResult {
		db, err := c.ensure()
		if err != nil {
			return &QueryResult{Err: err}
		}
		c.executedCount.Add(1)
		c.logQuery(qc)
		rows, err := db.QueryContext(ctx, qc.SQL, qc.Args...)
		return &QueryResult{Rows: rows, Err: err}
	}
	res := c.runChain(ctx, qc, root)
	return res.Rows, res.Err
}

func (c *Conn) execStmt(ctx context.Context, qc *QueryContext) (sql.Result, error) {
	var root Handler = func(ctx context.Context, qc *QueryContext) *QueryResult {
		db, err := c.ensure()
		if err != nil {
			return &QueryResult{Err: err}
		}
		c.executedCount.Add(1)
		c.logQuery(qc)
		res, err := db.ExecContext(ctx, qc.SQL, qc.Args...)
		return &QueryResult{Result: res, Err: err}
	}
	res := c.runChain(ctx, qc, root)
	return res.Result, res.Err
}

func (c *Conn) runChain(ctx context.Context, qc *QueryContext, root Handler) *QueryResult {
	for i := len(c.mdls) - 1; i >= 0; i-- {
		root = c.mdls[i](root)
	}
	return root(ctx, qc)
}

// 每条真正执行的语句打一次SQL文本, 参数非空再打一次参数
func (c *Conn) logQuery(qc *QueryContext) {
	c.log.Debug(qc.SQL, zap.String("conn", c.id))
	if len(qc.Args) > 0 {
		c.log.Debug("args", zap.String("conn", c.id), zap.Any("args", qc.Args))
	}
}

func (c *Conn) clearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}
