package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoStore 基于MongoDB的Store实现。处理预警依赖多文档事务，需要副本集部署
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 初始化MongoDB连接
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	// 设置连接超时
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("连接MongoDB失败: %w", err)
	}

	// 检查连接
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB失败: %w", err)
	}

	db := client.Database(dbName)
	utils.Logger.Info().Str("database", dbName).Msg("已连接到MongoDB")

	return &MongoStore{client: client, db: db}, nil
}

// Close 关闭MongoDB连接
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("断开MongoDB连接失败")
		return err
	}
	utils.Logger.Info().Msg("已断开MongoDB连接")
	return nil
}

// InitializeCollections 初始化集合与索引
func (s *MongoStore) InitializeCollections(ctx context.Context) error {
	for _, collName := range []string{LeadsCollection, AlertsCollection, ResolutionsCollection} {
		exists, err := s.collectionExists(ctx, collName)
		if err != nil {
			return fmt.Errorf("检查集合失败: %w", err)
		}

		if !exists {
			if err := s.db.CreateCollection(ctx, collName); err != nil {
				return fmt.Errorf("创建集合失败: %w", err)
			}
			utils.Logger.Info().Str("collection", collName).Msg("创建集合成功")
		} else {
			utils.Logger.Info().Str("collection", collName).Msg("集合已存在")
		}
	}

	_, err := s.db.Collection(AlertsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "detectedat", Value: 1}}},
		{Keys: bson.D{{Key: "leadaid", Value: 1}, {Key: "leadbid", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("创建预警索引失败: %w", err)
	}

	_, err = s.db.Collection(ResolutionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "alertid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("创建处理记录索引失败: %w", err)
	}

	return nil
}

func (s *MongoStore) collectionExists(ctx context.Context, collName string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": collName})
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == collName {
			return true, nil
		}
	}
	return false, nil
}

// ExecuteDbOperation 执行只读数据库操作，网络类错误会重试
func ExecuteDbOperation(operation func() (interface{}, error), retries int) (interface{}, error) {
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		result, err := operation()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// 如果是不可重试的错误，立即返回
		if !isRetryableError(err) {
			break
		}

		utils.Logger.Error().Err(err).Msgf("数据库操作失败，重试 (%d/%d)", i+1, retries)
		time.Sleep(time.Duration(500*(i+1)) * time.Millisecond)
	}

	return nil, lastErr
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}

	// MongoDB可重试错误代码
	retryableCodes := map[int32]bool{
		6:     true, // HostUnreachable
		7:     true, // HostNotFound
		89:    true, // NetworkTimeout
		91:    true, // ShutdownInProgress
		189:   true, // PrimarySteppedDown
		10107: true, // NotMaster
		13436: true, // NotMasterNoSlaveOk
		11600: true, // InterruptedAtShutdown
		11602: true, // InterruptedDueToReplStateChange
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}

	return isNetworkError(err)
}

// isNetworkError 检查是否是网络错误
func isNetworkError(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	for _, ne := range []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no reachable servers",
		"server selection error",
	} {
		if strings.Contains(errMsg, ne) {
			return true
		}
	}
	return false
}

func (s *MongoStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.db.Collection(LeadsCollection).InsertOne(ctx, lead); err != nil {
		return fmt.Errorf("创建线索失败: %w", err)
	}
	return nil
}

func (s *MongoStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	result, err := ExecuteDbOperation(func() (interface{}, error) {
		return findLead(ctx, s.db.Collection(LeadsCollection), id)
	}, 3)
	if err != nil {
		return nil, err
	}
	return result.(*models.Lead), nil
}

func findLead(ctx context.Context, coll *mongo.Collection, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&lead); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询线索失败: %w", err)
	}
	return &lead, nil
}

func (s *MongoStore) CreateAlert(ctx context.Context, alert *models.DuplicateAlert) error {
	if alert.ID == "" {
		alert.ID = primitive.NewObjectID().Hex()
	}
	if alert.SimilarityFactors == nil {
		alert.SimilarityFactors = []string{}
	}
	if _, err := s.db.Collection(AlertsCollection).InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("创建重复预警失败: %w", err)
	}
	return nil
}

func (s *MongoStore) GetAlert(ctx context.Context, id string) (*models.DuplicateAlert, error) {
	result, err := ExecuteDbOperation(func() (interface{}, error) {
		var alert models.DuplicateAlert
		if err := s.db.Collection(AlertsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&alert); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("查询重复预警失败: %w", err)
		}
		return &alert, nil
	}, 3)
	if err != nil {
		return nil, err
	}
	return result.(*models.DuplicateAlert), nil
}

func (s *MongoStore) FindPendingAlertByPair(ctx context.Context, leadA, leadB string) (*models.DuplicateAlert, error) {
	filter := bson.M{
		"status": models.AlertStatusPending,
		"$or": bson.A{
			bson.M{"leadaid": leadA, "leadbid": leadB},
			bson.M{"leadaid": leadB, "leadbid": leadA},
		},
	}

	var alert models.DuplicateAlert
	if err := s.db.Collection(AlertsCollection).FindOne(ctx, filter).Decode(&alert); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询重复预警失败: %w", err)
	}
	return &alert, nil
}

func (s *MongoStore) ListAlerts(ctx context.Context, status models.AlertStatus, limit int) ([]models.DuplicateAlert, error) {
	findOptions := options.Find()
	if status == models.AlertStatusPending {
		findOptions.SetSort(bson.D{{Key: "detectedat", Value: 1}, {Key: "_id", Value: 1}})
	} else {
		findOptions.SetSort(bson.D{{Key: "resolvedat", Value: -1}, {Key: "_id", Value: 1}})
	}
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	result, err := ExecuteDbOperation(func() (interface{}, error) {
		cursor, err := s.db.Collection(AlertsCollection).Find(ctx, bson.M{"status": status}, findOptions)
		if err != nil {
			return nil, fmt.Errorf("查询重复预警列表失败: %w", err)
		}
		defer cursor.Close(ctx)

		alerts := []models.DuplicateAlert{}
		if err := cursor.All(ctx, &alerts); err != nil {
			return nil, fmt.Errorf("解析重复预警失败: %w", err)
		}
		return alerts, nil
	}, 3)
	if err != nil {
		return nil, err
	}
	return result.([]models.DuplicateAlert), nil
}

// ApplyResolution 在事务中以 status=pending 为条件更新预警，再按版本号更新线索并写入处理记录
func (s *MongoStore) ApplyResolution(ctx context.Context, alert *models.DuplicateAlert, leads []LeadUpdate, res *models.Resolution) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}
	defer session.EndSession(ctx)

	if res.ID == "" {
		res.ID = primitive.NewObjectID().Hex()
	}

	txnOpts := options.Transaction().SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		alerts := s.db.Collection(AlertsCollection)

		update := bson.M{"$set": bson.M{
			"status":           models.AlertStatusResolved,
			"action":           alert.Action,
			"resolvedby":       alert.ResolvedBy,
			"resolvedat":       alert.ResolvedAt,
			"notes":            alert.Notes,
			"creditassignedto": alert.CreditAssignedTo,
			"duplicateof":      alert.DuplicateOf,
			"duplicateleadid":  alert.DuplicateLeadID,
		}}
		result, err := alerts.UpdateOne(sessCtx, bson.M{"_id": alert.ID, "status": models.AlertStatusPending}, update)
		if err != nil {
			return nil, fmt.Errorf("更新重复预警失败: %w", err)
		}
		if result.MatchedCount == 0 {
			count, err := alerts.CountDocuments(sessCtx, bson.M{"_id": alert.ID})
			if err != nil {
				return nil, fmt.Errorf("查询重复预警失败: %w", err)
			}
			if count == 0 {
				return nil, ErrNotFound
			}
			return nil, ErrAlertNotPending
		}

		leadsColl := s.db.Collection(LeadsCollection)
		for _, lu := range leads {
			lead := lu.Lead
			set := bson.M{
				"status":          lead.Status,
				"creditshare":     lead.CreditShare,
				"creditowner":     lead.CreditOwner,
				"duplicateof":     lead.DuplicateOf,
				"resolvedbyalert": lead.ResolvedByAlert,
				"version":         lead.Version,
				"updatedat":       lead.UpdatedAt,
			}
			result, err := leadsColl.UpdateOne(sessCtx, bson.M{"_id": lead.ID, "version": lu.ExpectedVersion}, bson.M{"$set": set})
			if err != nil {
				return nil, fmt.Errorf("更新线索失败: %w", err)
			}
			if result.MatchedCount == 0 {
				return nil, ErrLeadVersionMismatch
			}
		}

		if _, err := s.db.Collection(ResolutionsCollection).InsertOne(sessCtx, res); err != nil {
			return nil, fmt.Errorf("写入处理记录失败: %w", err)
		}
		return nil, nil
	}, txnOpts)

	return err
}

func (s *MongoStore) GetResolution(ctx context.Context, alertID string) (*models.Resolution, error) {
	var res models.Resolution
	if err := s.db.Collection(ResolutionsCollection).FindOne(ctx, bson.M{"alertid": alertID}).Decode(&res); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询处理记录失败: %w", err)
	}
	return &res, nil
}

// Status 获取数据库状态
func (s *MongoStore) Status(ctx context.Context) (*models.DatabaseStatus, error) {
	status := &models.DatabaseStatus{
		Driver:      "mongo",
		Collections: make(map[string]int64),
	}
	for _, collName := range []string{LeadsCollection, AlertsCollection, ResolutionsCollection} {
		count, err := s.db.Collection(collName).CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.Logger.Error().Err(err).Str("collection", collName).Msg("获取集合计数失败")
			return nil, err
		}
		status.Collections[collName] = count
	}
	return status, nil
}
