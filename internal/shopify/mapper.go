package shopify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ringforgeapp/ringforge/internal/metalrate"
	"github.com/ringforgeapp/ringforge/internal/numeric"
	"github.com/ringforgeapp/ringforge/internal/pricing"
)

var (
	mediaVideoExtensionRe = regexp.MustCompile(`(?i)\.(mp4|webm|mov|m3u8)(\?.*)?$`)
	mediaModelExtensionRe = regexp.MustCompile(`(?i)\.(glb|gltf|usdz)(\?.*)?$`)
)

// Variant media metafields carried through for the ring builder UI (diamond
// videos, style icons, extra gallery entries).
var variantMediaMetafieldKeys = []string{
	"diamond_video",
	"diamond_video_url",
	"gallery_media",
	"style_icon",
	"style_icon_url",
}

// MediaItem is one normalized catalog media entry.
type MediaItem struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Src      string `json:"src"`
	Poster   string `json:"poster"`
	Alt      string `json:"alt"`
	MimeType string `json:"mimeType,omitempty"`
}

type ProductOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MetafieldEntry is a raw metafield exposed on variant payloads.
type MetafieldEntry struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
}

type Variant struct {
	ID                   string                   `json:"id"`
	Title                string                   `json:"title"`
	AvailableForSale     bool                     `json:"availableForSale"`
	CurrentlyNotInStock  bool                     `json:"currentlyNotInStock"`
	QuantityAvailable    *int                     `json:"quantityAvailable"`
	Image                string                   `json:"image"`
	SKU                  string                   `json:"sku"`
	MetalType            metalrate.Metal          `json:"metalType"`
	MetalLabel           string                   `json:"metalLabel"`
	MetalWeightGrams     *float64                 `json:"metalWeightGrams"`
	MakingCharge         float64                  `json:"makingCharge"`
	StylePriceAdjustment float64                  `json:"stylePriceAdjustment"`
	PriceAmount          float64                  `json:"priceAmount"`
	CurrencyCode         string                   `json:"currencyCode"`
	Price                string                   `json:"price"`
	SelectedOptions      []pricing.SelectedOption `json:"selectedOptions"`
	Metafields           []MetafieldEntry         `json:"metafields"`
	MetafieldMedia       []MediaItem              `json:"metafieldMedia"`
	Pricing              pricing.VariantPricing   `json:"pricing"`
}

type Product struct {
	ID              string                              `json:"id"`
	Title           string                              `json:"title"`
	Description     string                              `json:"description"`
	DescriptionHTML string                              `json:"descriptionHtml"`
	Handle          string                              `json:"handle"`
	ProductType     string                              `json:"productType"`
	Tags            []string                            `json:"tags"`
	Image           string                              `json:"image"`
	Images          []string                            `json:"images"`
	Media           []MediaItem                         `json:"media"`
	MerchandiseID   string                              `json:"merchandiseId"`
	PriceAmount     float64                             `json:"priceAmount"`
	CurrencyCode    string                              `json:"currencyCode"`
	Price           string                              `json:"price"`
	Pricing         *pricing.VariantPricing             `json:"pricing"`
	MetalRates      map[metalrate.Metal]*metalrate.Rate `json:"metalRates"`
	Options         []ProductOption                     `json:"options"`
	Variants        []Variant                           `json:"variants"`
}

// ProductMapper turns raw Shopify product nodes into priced Products. The
// GraphQL metafield selection is derived from the pricing field table so
// alias overrides flow through to the query.
type ProductMapper struct {
	extractor     *pricing.Extractor
	pricingKeys   []string
	nodeSelection string
}

func NewProductMapper(table pricing.FieldTable) *ProductMapper {
	keys := pricingMetafieldKeys(table)
	return &ProductMapper{
		extractor:     pricing.NewExtractor(table),
		pricingKeys:   keys,
		nodeSelection: buildProductNodeSelection(keys),
	}
}

// NodeSelection is the GraphQL selection for one product node, including
// every pricing metafield at product and variant scope.
func (m *ProductMapper) NodeSelection() string {
	return m.nodeSelection
}

func pricingMetafieldKeys(table pricing.FieldTable) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, group := range [][]string{
		table.Weight,
		table.MakingCharge,
		table.StyleAdjustment,
		table.ManualMetalRate,
		table.ManualGoldRate,
		table.ManualPlatinumRate,
	} {
		for _, key := range group {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func metafieldSelection(keys []string) string {
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: metafield(namespace: \"custom\", key: %q) {\n    value\n    type\n  }\n", key, key)
	}
	return b.String()
}

func buildProductNodeSelection(pricingKeys []string) string {
	variantKeys := append(append([]string{}, variantMediaMetafieldKeys...), pricingKeys...)

	return fmt.Sprintf(`
  id
  title
  description
  descriptionHtml
  handle
  productType
  tags
  featuredImage { url }
  options {
    name
    values
  }
%s  media(first: 24) {
    edges {
      node {
        __typename
        mediaContentType
        alt
        ... on MediaImage {
          id
          image {
            url
            altText
          }
        }
        ... on Video {
          id
          previewImage { url }
          sources {
            url
            mimeType
            format
          }
        }
        ... on ExternalVideo {
          id
          embeddedUrl
          originUrl
          previewImage { url }
        }
        ... on Model3d {
          id
          previewImage { url }
          sources {
            url
            mimeType
            format
          }
        }
      }
    }
  }
  images(first: 24) {
    edges {
      node {
        url
        altText
      }
    }
  }
  variants(first: 60) {
    edges {
      node {
        id
        title
        availableForSale
        currentlyNotInStock
        quantityAvailable
        sku
        image { url }
        selectedOptions {
          name
          value
        }
        price {
          amount
          currencyCode
        }
%s      }
    }
  }
`, metafieldSelection(pricingKeys), metafieldSelection(variantKeys))
}

// Raw node shapes for GraphQL decoding. Metafields are captured separately
// from the same raw message since their aliases are table-driven.

type imageNode struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

type sourceNode struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Format   string `json:"format"`
}

type mediaEdgeNode struct {
	Typename     string       `json:"__typename"`
	ID           string       `json:"id"`
	Alt          string       `json:"alt"`
	Image        *imageNode   `json:"image"`
	PreviewImage *imageNode   `json:"previewImage"`
	Sources      []sourceNode `json:"sources"`
	EmbeddedURL  string       `json:"embeddedUrl"`
	OriginURL    string       `json:"originUrl"`
}

type moneyNode struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type variantNode struct {
	ID                  string                   `json:"id"`
	Title               string                   `json:"title"`
	AvailableForSale    bool                     `json:"availableForSale"`
	CurrentlyNotInStock bool                     `json:"currentlyNotInStock"`
	QuantityAvailable   *int                     `json:"quantityAvailable"`
	SKU                 string                   `json:"sku"`
	Image               *imageNode               `json:"image"`
	SelectedOptions     []pricing.SelectedOption `json:"selectedOptions"`
	Price               moneyNode                `json:"price"`
}

type productNode struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DescriptionHTML string     `json:"descriptionHtml"`
	Handle          string     `json:"handle"`
	ProductType     string     `json:"productType"`
	Tags            []string   `json:"tags"`
	FeaturedImage   *imageNode `json:"featuredImage"`
	Options         []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
	Media struct {
		Edges []struct {
			Node mediaEdgeNode `json:"node"`
		} `json:"edges"`
	} `json:"media"`
	Images struct {
		Edges []struct {
			Node imageNode `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Variants struct {
		Edges []struct {
			Node json.RawMessage `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// metafieldsFromRaw pulls aliased metafield objects out of a raw GraphQL
// node, keyed by metafield key.
func metafieldsFromRaw(raw json.RawMessage, keys []string) pricing.Metafields {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return pricing.Metafields{}
	}

	fields := make(pricing.Metafields, len(keys))
	for _, key := range keys {
		entry, exists := generic[key]
		if !exists {
			continue
		}
		var field pricing.Metafield
		if err := json.Unmarshal(entry, &field); err != nil {
			continue
		}
		if field.Value == "" {
			continue
		}
		fields[key] = &field
	}
	return fields
}

// MapStorefrontProduct converts one raw Storefront API product node into a
// priced Product using the supplied resolved rates.
func (m *ProductMapper) MapStorefrontProduct(raw json.RawMessage, rates *metalrate.RateSet) Product {
	var node productNode
	_ = json.Unmarshal(raw, &node)

	productFields := metafieldsFromRaw(raw, m.pricingKeys)
	productConfig := m.extractor.ProductConfig(productFields)

	media := mapStorefrontMedia(node.Media.Edges)
	for i, edge := range node.Images.Edges {
		if item := makeMediaItem(fmt.Sprintf("img-%d", i), "image", edge.Node.URL, edge.Node.URL, edge.Node.AltText, ""); item != nil {
			media = append(media, *item)
		}
	}
	media = dedupeMediaItems(media)

	variants := make([]Variant, 0, len(node.Variants.Edges))
	for _, edge := range node.Variants.Edges {
		variants = append(variants, m.mapVariant(edge.Node, productConfig, rates))
	}

	primary := primaryVariant(variants)
	amount := 0.0
	currency := "USD"
	var productPricing *pricing.VariantPricing
	merchandiseID := ""
	primaryImage := ""
	if primary != nil {
		amount = primary.PriceAmount
		currency = primary.CurrencyCode
		pricingCopy := primary.Pricing
		productPricing = &pricingCopy
		merchandiseID = primary.ID
		primaryImage = primary.Image
	}

	images := imageSources(media)
	image := primaryImage
	if image == "" && node.FeaturedImage != nil {
		image = node.FeaturedImage.URL
	}
	if image == "" && len(images) > 0 {
		image = images[0]
	}

	options := make([]ProductOption, 0, len(node.Options))
	for _, option := range node.Options {
		options = append(options, ProductOption{Name: option.Name, Values: option.Values})
	}

	return Product{
		ID:              node.ID,
		Title:           node.Title,
		Description:     node.Description,
		DescriptionHTML: firstNonEmpty(node.DescriptionHTML, node.Description),
		Handle:          node.Handle,
		ProductType:     node.ProductType,
		Tags:            node.Tags,
		Image:           image,
		Images:          images,
		Media:           media,
		MerchandiseID:   merchandiseID,
		PriceAmount:     amount,
		CurrencyCode:    currency,
		Price:           formatAmountLabel(amount, currency),
		Pricing:         productPricing,
		MetalRates: map[metalrate.Metal]*metalrate.Rate{
			metalrate.Gold:     rates.RateFor(metalrate.Gold),
			metalrate.Platinum: rates.RateFor(metalrate.Platinum),
		},
		Options:  options,
		Variants: variants,
	}
}

func (m *ProductMapper) mapVariant(raw json.RawMessage, productConfig pricing.Config, rates *metalrate.RateSet) Variant {
	var node variantNode
	_ = json.Unmarshal(raw, &node)

	variantFields := metafieldsFromRaw(raw, m.pricingKeys)
	variantConfig := m.extractor.VariantConfig(variantFields, productConfig)

	baseAmount := 0.0
	if parsed := numeric.ToNumber(node.Price.Amount); parsed != nil {
		baseAmount = *parsed
	}
	currency := firstNonEmpty(node.Price.CurrencyCode, "USD")

	variantPricing := pricing.BuildVariantPricing(variantConfig, node.SelectedOptions, rates, baseAmount, currency)
	displayAmount := variantPricing.DisplayAmount()

	mediaMetafields := metafieldsFromRaw(raw, variantMediaMetafieldKeys)
	metafields := make([]MetafieldEntry, 0, len(mediaMetafields))
	var metafieldMedia []MediaItem
	for _, key := range variantMediaMetafieldKeys {
		field := mediaMetafields[key]
		if field == nil {
			continue
		}
		metafields = append(metafields, MetafieldEntry{Namespace: "custom", Key: key, Value: field.Value})
		metafieldMedia = append(metafieldMedia, metafieldMediaItems(field.Value, key)...)
	}

	imageURL := ""
	if node.Image != nil {
		imageURL = node.Image.URL
	}

	return Variant{
		ID:                   node.ID,
		Title:                node.Title,
		AvailableForSale:     node.AvailableForSale,
		CurrentlyNotInStock:  node.CurrentlyNotInStock,
		QuantityAvailable:    node.QuantityAvailable,
		Image:                imageURL,
		SKU:                  node.SKU,
		MetalType:            variantPricing.MetalType,
		MetalLabel:           variantPricing.MetalLabel,
		MetalWeightGrams:     variantConfig.MetalWeightGrams,
		MakingCharge:         variantConfig.MakingCharge,
		StylePriceAdjustment: variantConfig.StylePriceAdjustment,
		PriceAmount:          displayAmount,
		CurrencyCode:         currency,
		Price:                formatAmountLabel(displayAmount, currency),
		SelectedOptions:      node.SelectedOptions,
		Metafields:           metafields,
		MetafieldMedia:       dedupeMediaItems(metafieldMedia),
		Pricing:              variantPricing,
	}
}

func mapStorefrontMedia(edges []struct {
	Node mediaEdgeNode `json:"node"`
}) []MediaItem {
	var items []MediaItem
	for _, edge := range edges {
		node := edge.Node
		var item *MediaItem
		switch node.Typename {
		case "MediaImage":
			if node.Image != nil {
				item = makeMediaItem(node.ID, "image", node.Image.URL, node.Image.URL, firstNonEmpty(node.Image.AltText, node.Alt), "")
			}
		case "Video":
			preferred := preferSource(node.Sources, func(s sourceNode) bool {
				return strings.Contains(strings.ToLower(s.MimeType), "mp4")
			})
			if preferred != nil {
				item = makeMediaItem(node.ID, "video", preferred.URL, previewURL(node), node.Alt, preferred.MimeType)
			}
		case "ExternalVideo":
			item = makeMediaItem(node.ID, "video", firstNonEmpty(node.EmbeddedURL, node.OriginURL), previewURL(node), node.Alt, "")
		case "Model3d":
			preferred := preferSource(node.Sources, func(s sourceNode) bool {
				return strings.Contains(strings.ToLower(s.MimeType), "gltf-binary") ||
					strings.HasSuffix(strings.ToLower(s.URL), ".glb")
			})
			if preferred == nil {
				preferred = preferSource(node.Sources, func(s sourceNode) bool {
					return strings.Contains(strings.ToLower(s.MimeType), "gltf")
				})
			}
			if preferred != nil {
				item = makeMediaItem(node.ID, "model", preferred.URL, previewURL(node), node.Alt, preferred.MimeType)
			}
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return dedupeMediaItems(items)
}

func previewURL(node mediaEdgeNode) string {
	if node.PreviewImage != nil {
		return node.PreviewImage.URL
	}
	return ""
}

func preferSource(sources []sourceNode, match func(sourceNode) bool) *sourceNode {
	for i := range sources {
		if match(sources[i]) {
			return &sources[i]
		}
	}
	if len(sources) > 0 {
		return &sources[0]
	}
	return nil
}

// makeMediaItem normalizes one media entry; the type is corrected from the
// URL extension when the declared type disagrees.
func makeMediaItem(id, mediaType, src, poster, alt, mimeType string) *MediaItem {
	normalizedSrc := strings.TrimSpace(src)
	if normalizedSrc == "" {
		return nil
	}

	normalizedType := strings.ToLower(mediaType)
	switch {
	case strings.Contains(normalizedType, "video"):
		normalizedType = "video"
	case strings.Contains(normalizedType, "model"):
		normalizedType = "model"
	case mediaModelExtensionRe.MatchString(normalizedSrc):
		normalizedType = "model"
	case mediaVideoExtensionRe.MatchString(normalizedSrc):
		normalizedType = "video"
	default:
		normalizedType = "image"
	}

	if id == "" {
		id = normalizedType + "-" + normalizedSrc
	}
	if poster == "" && normalizedType == "image" {
		poster = normalizedSrc
	}

	return &MediaItem{
		ID:       id,
		Type:     normalizedType,
		Src:      normalizedSrc,
		Poster:   strings.TrimSpace(poster),
		Alt:      strings.TrimSpace(alt),
		MimeType: strings.TrimSpace(mimeType),
	}
}

// metafieldMediaItems extracts media URLs from a metafield value that may be
// a bare URL, or a JSON-encoded array/object of URLs.
func metafieldMediaItems(value, key string) []MediaItem {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil
	}

	var parsed any = raw
	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			parsed = decoded
		}
	}

	urls := collectURLs(parsed)
	items := make([]MediaItem, 0, len(urls))
	for i, u := range urls {
		mediaType := "image"
		if mediaModelExtensionRe.MatchString(u) {
			mediaType = "model"
		} else if mediaVideoExtensionRe.MatchString(u) {
			mediaType = "video"
		}
		poster := u
		if mediaType == "video" {
			poster = ""
		}
		if item := makeMediaItem(fmt.Sprintf("metafield-%s-%d", key, i), mediaType, u, poster, key, ""); item != nil {
			items = append(items, *item)
		}
	}
	return dedupeMediaItems(items)
}

func collectURLs(input any) []string {
	switch v := input.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return []string{trimmed}
		}
		return nil
	case []any:
		var urls []string
		for _, entry := range v {
			urls = append(urls, collectURLs(entry)...)
		}
		return urls
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var urls []string
		for _, key := range keys {
			urls = append(urls, collectURLs(v[key])...)
		}
		return urls
	default:
		return nil
	}
}

func dedupeMediaItems(items []MediaItem) []MediaItem {
	seen := make(map[string]bool, len(items))
	var output []MediaItem
	for _, item := range items {
		if item.Src == "" {
			continue
		}
		key := item.Type + "::" + item.Src
		if seen[key] {
			continue
		}
		seen[key] = true
		output = append(output, item)
	}
	return output
}

func imageSources(media []MediaItem) []string {
	var sources []string
	for _, item := range media {
		if item.Type == "image" {
			sources = append(sources, item.Src)
		}
	}
	return sources
}

func primaryVariant(variants []Variant) *Variant {
	for i := range variants {
		if variants[i].AvailableForSale {
			return &variants[i]
		}
	}
	if len(variants) > 0 {
		return &variants[0]
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// formatAmountLabel renders "$1,234.56 USD" style display prices with
// thousands separators and at most two decimal places.
func formatAmountLabel(amount float64, currencyCode string) string {
	rounded := numeric.RoundMoney(amount)
	negative := rounded < 0
	if negative {
		rounded = -rounded
	}

	whole := int64(rounded)
	fraction := numeric.RoundMoney(rounded - float64(whole))

	text := groupThousands(whole)
	if fraction > 0 {
		text += fmt.Sprintf("%.2f", fraction)[1:]
	}
	if negative {
		text = "-" + text
	}
	return fmt.Sprintf("$%s %s", text, currencyCode)
}

func groupThousands(value int64) string {
	digits := fmt.Sprintf("%d", value)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
