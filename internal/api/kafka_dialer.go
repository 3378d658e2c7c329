package api

import (
	"crypto/tls"
	"crypto/x509"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// kafkaSecurity собирает SASL/PLAIN и TLS для управляемых Kafka (Aiven и т.п.).
// TLS включается, если задан SASL или CA сертификат. Без CA используются системные сертификаты.
func kafkaSecurity(username, password, caCert string) (sasl.Mechanism, *tls.Config) {
	var mechanism sasl.Mechanism
	if username != "" && password != "" {
		mechanism = plain.Mechanism{
			Username: username,
			Password: password,
		}
	}

	if mechanism == nil && caCert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if caCert != "" {
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM([]byte(caCert)); ok {
			tlsConfig.RootCAs = caCertPool
		} else {
			log.Printf("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	}
	return mechanism, tlsConfig
}

// CreateKafkaDialer создает dialer для Kafka consumer
func CreateKafkaDialer(username, password, caCert string) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	mechanism, tlsConfig := kafkaSecurity(username, password, caCert)
	if mechanism != nil {
		dialer.SASLMechanism = mechanism
		log.Printf("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}
	if tlsConfig != nil {
		dialer.TLS = tlsConfig
		log.Printf("🔒 Kafka: TLS включен")
	}
	return dialer
}

// NewKafkaWriter создает producer событий склада. Ключ сообщения - tenant_id, поэтому
// события одной пиццерии попадают в одну партицию и сохраняют порядок.
func NewKafkaWriter(brokers, topic, username, password, caCert string) *kafka.Writer {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil
	}

	mechanism, tlsConfig := kafkaSecurity(username, password, caCert)
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	if mechanism != nil || tlsConfig != nil {
		writer.Transport = &kafka.Transport{
			SASL: mechanism,
			TLS:  tlsConfig,
		}
	}
	log.Printf("✅ Kafka producer подключен к %s (topic %s)", strings.Join(brokerList, ","), topic)
	return writer
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	// Убираем пробелы и разбиваем по запятой
	brokerList := strings.Split(strings.ReplaceAll(brokers, " ", ""), ",")
	var result []string
	for _, broker := range brokerList {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
