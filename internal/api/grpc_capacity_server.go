package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pizzaria/internal/auth"
	"pizzaria/internal/inventory"
	"pizzaria/internal/models"
	"pizzaria/internal/services"
)

// CapacityServiceName - полное имя gRPC сервиса.
// Сообщения передаются как google.protobuf.Struct, поэтому сгенерированный код не нужен.
const CapacityServiceName = "pizzaria.capacity.v1.CapacityService"

// CapacityServiceServer - методы gRPC сервиса мощности
type CapacityServiceServer interface {
	Calculate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RecipeCapacity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ValidateSale(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RecipeCapacityProvider - часть RecipeService, нужная gRPC серверу
type RecipeCapacityProvider interface {
	Get(tenantID, id string) (*models.Recipe, error)
	Capacity(tenantID, recipeID string) (inventory.CapacityResult, error)
}

// SaleChecker - часть SaleService, нужная gRPC серверу
type SaleChecker interface {
	Validate(tenantID, recipeID string, quantity int) (inventory.SaleValidation, error)
}

type tenantCtxKey struct{}

// CapacityGRPCServer реализует CapacityServiceServer
type CapacityGRPCServer struct {
	recipes RecipeCapacityProvider
	sales   SaleChecker
}

func NewCapacityGRPCServer(recipes RecipeCapacityProvider, sales SaleChecker) *CapacityGRPCServer {
	return &CapacityGRPCServer{recipes: recipes, sales: sales}
}

// Calculate считает мощность по переданным требованиям, БД не используется.
// Вход: {"requirements": [{"ingredient_id", "ingredient_name", "quantity_needed", "current_stock", "unit"}]}
func (s *CapacityGRPCServer) Calculate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in CalculateRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	return encodeStruct(inventory.CalculateCapacity(in.Requirements))
}

// RecipeCapacity возвращает мощность рецепта пиццерии из токена.
// Вход: {"recipe_id"}
func (s *CapacityGRPCServer) RecipeCapacity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		RecipeID string `json:"recipe_id"`
	}
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	if in.RecipeID == "" {
		return nil, status.Error(codes.InvalidArgument, "recipe_id is required")
	}

	recipe, err := s.recipes.Get(tenantID, in.RecipeID)
	if err != nil {
		return nil, grpcError(err)
	}
	result, err := s.recipes.Capacity(tenantID, recipe.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	return encodeStruct(services.RecipeCapacity{
		RecipeID:       recipe.ID,
		RecipeName:     recipe.Name,
		Type:           string(recipe.Type),
		CapacityResult: result,
	})
}

// ValidateSale проверяет продажу по остаткам пиццерии из токена.
// Вход: {"recipe_id", "quantity"}
func (s *CapacityGRPCServer) ValidateSale(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var in SaleRequest
	if err := decodeStruct(req, &in); err != nil {
		return nil, err
	}
	if in.RecipeID == "" {
		return nil, status.Error(codes.InvalidArgument, "recipe_id is required")
	}

	result, err := s.sales.Validate(tenantID, in.RecipeID, in.Quantity)
	if err != nil {
		return nil, grpcError(err)
	}
	return encodeStruct(result)
}

// decodeStruct переносит google.protobuf.Struct в Go структуру через JSON
func decodeStruct(req *structpb.Struct, dest interface{}) error {
	if req == nil {
		return status.Error(codes.InvalidArgument, "empty request")
	}
	raw, err := req.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

// encodeStruct сериализует ответ в google.protobuf.Struct с теми же JSON именами полей, что и REST API
func encodeStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// grpcError переводит ошибки сервисов в коды gRPC
func grpcError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, services.ErrInsufficientStock), errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrInUse):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, services.ErrTenantSuspended):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func tenantFromContext(ctx context.Context) (string, error) {
	tenantID, _ := ctx.Value(tenantCtxKey{}).(string)
	if tenantID == "" {
		return "", status.Error(codes.Unauthenticated, "tenant token required")
	}
	return tenantID, nil
}

// CapacityAuthInterceptor проверяет Bearer токен из metadata "authorization".
// Calculate не обращается к данным пиццерии и доступен без токена.
func CapacityAuthInterceptor(tokens *auth.TokenManager, tenants TenantChecker) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod == "/"+CapacityServiceName+"/Calculate" {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization metadata required")
		}
		token, ok := bearerToken(values[0])
		if !ok {
			token = strings.TrimSpace(values[0])
		}
		claims, err := tokens.Parse(token)
		if err != nil || claims.TenantID == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		if tenants != nil {
			operational, err := tenants.IsOperational(claims.TenantID)
			if err != nil {
				return nil, grpcError(err)
			}
			if !operational {
				return nil, status.Error(codes.PermissionDenied, services.ErrTenantSuspended.Error())
			}
		}
		return handler(context.WithValue(ctx, tenantCtxKey{}, claims.TenantID), req)
	}
}

// RegisterCapacityServiceServer регистрирует сервис на gRPC сервере
func RegisterCapacityServiceServer(s grpc.ServiceRegistrar, srv CapacityServiceServer) {
	s.RegisterService(&capacityServiceDesc, srv)
}

func unaryHandler(method string, call func(CapacityServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CapacityServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fmt.Sprintf("/%s/%s", CapacityServiceName, method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(CapacityServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var capacityServiceDesc = grpc.ServiceDesc{
	ServiceName: CapacityServiceName,
	HandlerType: (*CapacityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Calculate", CapacityServiceServer.Calculate),
		unaryHandler("RecipeCapacity", CapacityServiceServer.RecipeCapacity),
		unaryHandler("ValidateSale", CapacityServiceServer.ValidateSale),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pizzaria/capacity/v1/capacity.proto",
}

// CapacityClient - минимальный клиент сервиса (для интеграций и тестов)
type CapacityClient struct {
	cc grpc.ClientConnInterface
}

func NewCapacityClient(cc grpc.ClientConnInterface) *CapacityClient {
	return &CapacityClient{cc: cc}
}

// Invoke вызывает метод сервиса по короткому имени
func (c *CapacityClient) Invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+CapacityServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
