package nivoda

import "fmt"

// Nivoda has shipped both a query and a mutation form of its authenticate
// operation; both are tried in order.
const (
	authQuery = `
  query Authenticate($username: String!, $password: String!) {
    authenticate {
      username_and_password(username: $username, password: $password) {
        token
      }
    }
  }
`
	authMutation = `
  mutation Authenticate($username: String!, $password: String!) {
    authenticate {
      username_and_password(username: $username, password: $password) {
        token
      }
    }
  }
`
)

var authQueryCandidates = []string{authQuery, authMutation}

const certificateFields = `
  id
  lab
  shape
  certNumber
  carats
  color
  clarity
  cut
  polish
  symmetry
  table
  depthPercentage
  floInt
  labgrown
`

var diamondBaseFields = fmt.Sprintf(`
  id
  image
  video
  mine_of_origin
  certificate {
    %s
  }
`, certificateFields)

// diamondExtraFieldSets are the media field selections tried in order, widest
// first, to tolerate schema drift between Nivoda deployments. The empty set
// is the last resort.
var diamondExtraFieldSets = []string{
	`
    video_url
    image_url
    hd_image_url
    preview_image_url
    media
    images
    hd_images
    preview_images
    thumbnails
  `,
	`
    videoUrl
    imageUrl
    hdImageUrl
    previewImageUrl
    media
    images
    hdImages
    previewImages
    thumbnails
  `,
	`
    video_url
    image_url
    hd_image_url
    preview_image_url
  `,
	`
    videoUrl
    imageUrl
    hdImageUrl
    previewImageUrl
  `,
	"",
}

func buildDiamondsQuery(extraFields string) string {
	return fmt.Sprintf(`
  query GetDiamonds($token: String!, $query: DiamondQuery!, $limit: Int, $offset: Int) {
    as(token: $token) {
      diamonds_by_query(
        query: $query
        limit: $limit
        offset: $offset
        order: { type: price, direction: ASC }
      ) {
        items {
          id
          price
          discount
          diamond {
            %s
            %s
          }
        }
        total_count
      }
    }
  }
`, diamondBaseFields, extraFields)
}

func buildDiamondByIDQuery(extraFields string) string {
	return fmt.Sprintf(`
  query GetDiamondById($token: String!, $query: DiamondQuery!, $limit: Int) {
    as(token: $token) {
      diamonds_by_query(query: $query, limit: $limit) {
        items {
          id
          price
          discount
          diamond {
            %s
            %s
          }
        }
      }
    }
  }
`, diamondBaseFields, extraFields)
}

func queryCandidates(build func(string) string) []string {
	candidates := make([]string, 0, len(diamondExtraFieldSets))
	for _, fields := range diamondExtraFieldSets {
		candidates = append(candidates, build(fields))
	}
	return candidates
}

var (
	diamondsQueryCandidates    = queryCandidates(buildDiamondsQuery)
	diamondByIDQueryCandidates = queryCandidates(buildDiamondByIDQuery)
)
